package auth

import (
	"bufio"
	"os"
	"strings"

	"github.com/lightningnetwork/corerpc/rpcerr"
)

// ReadCookie reads the first line of the cookie file at path and splits it at
// the first colon into a username and password. Both halves are returned
// byte for byte; only the line terminator is dropped.
func ReadCookie(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", rpcerr.Wrap(rpcerr.KindInvalidCookieFile, err, path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", "", rpcerr.Wrap(
				rpcerr.KindInvalidCookieFile, err, path,
			)
		}

		return "", "", rpcerr.Newf(
			rpcerr.KindInvalidCookieFile, "%s: empty file", path,
		)
	}

	user, pass, ok := strings.Cut(scanner.Text(), ":")
	if !ok {
		return "", "", rpcerr.Newf(
			rpcerr.KindInvalidCookieFile, "%s: missing ':' separator",
			path,
		)
	}

	return user, pass, nil
}

// ReadCookieToken reads the whole cookie file at path and returns its content
// with surrounding whitespace trimmed, for transports that send the cookie as
// an opaque pre-formatted token.
func ReadCookieToken(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", rpcerr.Wrap(rpcerr.KindInvalidCookieFile, err, path)
	}

	token := strings.TrimSpace(string(content))
	if token == "" {
		return "", rpcerr.Newf(
			rpcerr.KindInvalidCookieFile, "%s: empty file", path,
		)
	}

	return token, nil
}
