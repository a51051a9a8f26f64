package http

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const httpOnlyPrefix = "#HttpOnly_"

// parseCookies interprets an opaque cookie blob.
//
// Netscape cookies.txt content (seven tab-separated fields per line) is
// loaded into a cookie jar. Anything else is treated as a raw Cookie header
// value. An empty blob yields neither.
func parseCookies(blob []byte) (http.CookieJar, string, error) {
	blob = bytes.TrimSpace(blob)
	if len(blob) == 0 {
		return nil, "", nil
	}
	if !looksLikeNetscape(blob) {
		header := strings.TrimSpace(string(blob))
		if strings.HasPrefix(strings.ToLower(header), "cookie:") {
			header = strings.TrimSpace(header[len("cookie:"):])
		}
		return nil, header, nil
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	scanner := bufio.NewScanner(bytes.NewReader(blob))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
		if httpOnly {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, "", fmt.Errorf("line %d: want 7 tab-separated fields, got %d", lineNo, len(fields))
		}

		domain, includeSub, path, secure := fields[0], fields[1], fields[2], fields[3]
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("line %d: bad expiry %q", lineNo, fields[4])
		}

		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     path,
			Secure:   strings.EqualFold(secure, "TRUE"),
			HttpOnly: httpOnly,
		}
		if expires > 0 {
			cookie.Expires = time.Unix(expires, 0)
			if cookie.Expires.Before(now) {
				continue
			}
		}

		host := strings.TrimPrefix(domain, ".")
		if strings.EqualFold(includeSub, "TRUE") {
			cookie.Domain = host
		}

		scheme := "http"
		if cookie.Secure {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: "/"}, []*http.Cookie{cookie})
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}

	return jar, "", nil
}

func looksLikeNetscape(blob []byte) bool {
	if bytes.HasPrefix(blob, []byte("# Netscape HTTP Cookie File")) || bytes.HasPrefix(blob, []byte("# HTTP Cookie File")) {
		return true
	}
	scanner := bufio.NewScanner(bytes.NewReader(blob))
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), httpOnlyPrefix)
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Count(line, "\t") == 6
	}
	return false
}
