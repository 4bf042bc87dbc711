package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// buildFullURL joins the base URL, path, and encoded query string.
func buildFullURL(baseURL, path string, query url.Values) string {
	var fullURL strings.Builder

	fullURL.WriteString(baseURL)
	fullURL.WriteString(path)

	if len(query) > 0 {
		fullURL.WriteByte('?')
		fullURL.WriteString(query.Encode())
	}

	return fullURL.String()
}

var (
	frameColor = color.New(color.FgHiCyan, color.Bold)
	keyColor   = color.New(color.FgGreen)
	bodyColor  = color.New(color.FgHiMagenta)
)

// PrintRequest dumps an outgoing request to color.Output. The body is restored afterwards.
func PrintRequest(req *http.Request) {
	var body []byte

	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err == nil {
			body = data
		}

		req.Body = io.NopCloser(bytes.NewReader(data))
	}

	dump("HTTP Request", [][2]string{
		{"Method", req.Method},
		{"URL", req.URL.String()},
	}, req.Header, body)
}

// PrintResponse dumps a received response to color.Output.
func PrintResponse(resp *Response) {
	dump("HTTP Response", [][2]string{
		{"Status", resp.Status()},
		{"Duration", resp.Duration().String()},
	}, resp.Header(), resp.Bytes())
}

func dump(title string, fields [][2]string, header http.Header, body []byte) {
	w := color.Output

	_, _ = frameColor.Fprintf(w, "── %s ──\n", title)

	for _, f := range fields {
		_, _ = keyColor.Fprintf(w, "  %-9s", f[0])
		_, _ = fmt.Fprintln(w, f[1])
	}

	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "    %-20s : %s\n", k, strings.Join(header[k], ", "))
	}

	if len(body) == 0 {
		return
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "    ", "  ") == nil {
		body = pretty.Bytes()
	}

	_, _ = bodyColor.Fprintf(w, "    %s\n", body)
}
