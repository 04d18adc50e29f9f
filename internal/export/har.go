package export

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

// HAR 1.2 structures. Field names and casing follow the published schema
// exactly; external viewers are strict about them.
type harNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

type harRequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Cookies     []harNameValue `json:"cookies"`
	Headers     []harNameValue `json:"headers"`
	QueryString []harNameValue `json:"queryString"`
	PostData    *harPostData   `json:"postData,omitempty"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type harResponse struct {
	Status      int            `json:"status"`
	StatusText  string         `json:"statusText"`
	HTTPVersion string         `json:"httpVersion"`
	Cookies     []harNameValue `json:"cookies"`
	Headers     []harNameValue `json:"headers"`
	Content     harContent     `json:"content"`
	RedirectURL string         `json:"redirectURL"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type harTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

type harEntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         harTimings  `json:"timings"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// WriteHAR streams a HAR 1.2 log. The envelope is written by hand so the
// entries never have to be held in memory at once.
func WriteHAR(ctx context.Context, svc *usecase.TrafficService, f usecase.TransactionFilter, w io.Writer) (int, error) {
	head, err := json.Marshal(struct {
		Version string     `json:"version"`
		Creator harCreator `json:"creator"`
	}{Version: "1.2", Creator: harCreator{Name: "trafficlens", Version: "1.0"}})
	if err != nil {
		return 0, err
	}
	// head is {"version":...,"creator":...}; splice entries into the log object
	if _, err := io.WriteString(w, `{"log":`+string(head[:len(head)-1])+`,"entries":[`); err != nil {
		return 0, err
	}
	count := 0
	err = svc.ForEach(ctx, f, func(tx domain.Transaction) (bool, error) {
		raw, err := json.Marshal(toHAREntry(tx))
		if err != nil {
			return false, err
		}
		if count > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return false, err
			}
		}
		if _, err := w.Write(raw); err != nil {
			return false, err
		}
		count++
		return true, nil
	})
	if err != nil {
		return count, err
	}
	_, err = io.WriteString(w, "]}}")
	return count, err
}

func toHAREntry(tx domain.Transaction) harEntry {
	entry := harEntry{
		StartedDateTime: tx.CapturedAt().Format(time.RFC3339Nano),
		Time:            tx.Duration * 1000,
		Request: harRequest{
			Method:      tx.Method,
			URL:         tx.URL,
			HTTPVersion: "HTTP/1.1",
			Cookies:     []harNameValue{},
			Headers:     toNameValues(tx.RequestHeaders),
			QueryString: queryStringOf(tx.URL),
			HeadersSize: -1,
			BodySize:    len(tx.RequestBody),
		},
		Response: harResponse{
			Status:      tx.StatusOrZero(),
			StatusText:  http.StatusText(tx.StatusOrZero()),
			HTTPVersion: "HTTP/1.1",
			Cookies:     []harNameValue{},
			Headers:     toNameValues(tx.ResponseHeaders),
			Content: harContent{
				Size:     len(tx.ResponseBody),
				MimeType: mimeTypeOf(tx.ResponseHeaders),
				Text:     tx.ResponseBody,
			},
			RedirectURL: redirectOf(tx),
			HeadersSize: -1,
			BodySize:    len(tx.ResponseBody),
		},
		// send/wait/receive must be non-negative; the capture only measures
		// the total, so wait carries it all
		Timings: harTimings{Send: 0, Wait: tx.Duration * 1000, Receive: 0},
	}
	if tx.RequestBody != "" {
		entry.Request.PostData = &harPostData{MimeType: mimeTypeOf(tx.RequestHeaders), Text: tx.RequestBody}
	}
	return entry
}

func toNameValues(h domain.Headers) []harNameValue {
	out := make([]harNameValue, 0, len(h))
	for _, p := range h {
		out = append(out, harNameValue{Name: p.Name, Value: p.Value})
	}
	return out
}

func queryStringOf(raw string) []harNameValue {
	out := []harNameValue{}
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return out
	}
	vals, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return out
	}
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range vals[name] {
			out = append(out, harNameValue{Name: name, Value: v})
		}
	}
	return out
}

func mimeTypeOf(h domain.Headers) string {
	if ct, ok := h.Get("Content-Type"); ok {
		return ct
	}
	return "application/octet-stream"
}

func redirectOf(tx domain.Transaction) string {
	status := tx.StatusOrZero()
	if status >= 300 && status < 400 {
		if loc, ok := tx.ResponseHeaders.Get("Location"); ok {
			return loc
		}
	}
	return ""
}
