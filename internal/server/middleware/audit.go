package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/token"
)

// auditBodyPeek caps how much of the request body is captured.
const auditBodyPeek = 4096

// Audit returns the middleware that writes one "req" record at ingress and
// one "rsp" record at egress for every request. The request body is peeked
// up to 4KB and handed back to the handler intact; the response body is
// buffered in full so the persisted record holds exactly the bytes the
// client receives. Persistence failures are logged and swallowed: auditing
// never fails a request.
func Audit(st *store.Store, codec *token.Codec, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := decodedPath(r)
			subject := subjectID(codec, r)

			peek := peekBody(r)

			entry := model.AuditLog{
				UserID:     subject,
				Method:     r.Method,
				Path:       path,
				Query:      r.URL.RawQuery,
				Body:       peek,
				RemoteAddr: r.RemoteAddr,
				Kind:       model.AuditKindRequest,
				Created:    time.Now().Format(model.AuditTimeFormat),
			}
			if err := st.InsertAuditLog(r.Context(), &entry); err != nil {
				logger.Error("audit: request record insert failed", "error", err)
			}

			rec := &bufferingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			rsp := model.AuditLog{
				UserID:     subject,
				Method:     r.Method,
				Path:       path,
				Query:      r.URL.RawQuery,
				Body:       rec.buf.String(),
				RemoteAddr: r.RemoteAddr,
				Kind:       model.AuditKindResponse,
				Created:    time.Now().Format(model.AuditTimeFormat),
			}
			if err := st.InsertAuditLog(r.Context(), &rsp); err != nil {
				logger.Error("audit: response record insert failed", "error", err)
			}

			rec.flush()
		})
	}
}

// peekBody reads up to auditBodyPeek bytes of the request body and stitches
// the consumed prefix back in front of the remainder.
func peekBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	head := make([]byte, auditBodyPeek)
	n, _ := io.ReadFull(r.Body, head)
	head = head[:n]
	r.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(head), r.Body),
		Closer: r.Body,
	}
	return string(head)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// decodedPath returns the URL-decoded request path, falling back to empty
// on a decode failure like the audit trail always has.
func decodedPath(r *http.Request) string {
	p, err := url.PathUnescape(r.URL.EscapedPath())
	if err != nil {
		return ""
	}
	return p
}

// subjectID returns the authenticated subject id as a string when the
// request carries a valid bearer token, empty otherwise.
func subjectID(codec *token.Codec, r *http.Request) string {
	claims, err := codec.VerifyHeader(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return strconv.FormatInt(claims.ID, 10)
}

// bufferingWriter holds the whole response in memory until flush so the
// audit trail can record it first.
type bufferingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (w *bufferingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
}

func (w *bufferingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.buf.Write(b)
}

func (w *bufferingWriter) flush() {
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.Write(w.buf.Bytes())
}

// Unwrap returns the underlying ResponseWriter for interface assertions
// through middleware chains.
func (w *bufferingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
