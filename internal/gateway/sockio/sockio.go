// Package sockio implements gateway.Gateway over socket.io. The host CAD
// plugin exposes a socket.io namespace and answers each request through the
// acknowledgement callback.
package sockio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/panelsync/internal/ctxlog"
	"github.com/vk/panelsync/internal/gateway"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Request events understood by the host plugin.
const (
	EventFindDocument   = "document.find"
	EventActiveDocument = "document.active"
	EventImport         = "geometry.import"
	EventExportOBJ      = "geometry.export_obj"
)

const codeNoSolidGeometry = "no_solid_geometry"

// Config describes how to reach the host plugin.
type Config struct {
	URL       string
	Namespace string
	// Timeout bounds the connection handshake and each request.
	Timeout time.Duration
	// NewDocumentPath is where the host saves a document it creates to
	// receive an import.
	NewDocumentPath    string
	InsecureSkipVerify bool
}

// Gateway is a socket.io client for the host plugin.
type Gateway struct {
	cfg       Config
	manager   *socket.Manager
	io        *socket.Socket
	connected atomic.Bool
}

var _ gateway.Gateway = (*Gateway)(nil)

// reply is the acknowledgement envelope the plugin sends back.
type reply struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Document *gateway.Document `json:"document"`
}

// RemoteError is a failure reported by the host plugin.
type RemoteError struct {
	Event   string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("host rejected %s: %s", e.Event, e.Message)
	}
	return fmt.Sprintf("host rejected %s: %s (%s)", e.Event, e.Message, e.Code)
}

func (e *RemoteError) Is(target error) bool {
	return target == gateway.ErrNoSolidGeometry && e.Code == codeNoSolidGeometry
}

// Dial connects to the plugin and waits for the handshake.
func Dial(ctx context.Context, cfg Config) (*Gateway, error) {
	logger := ctxlog.FromContext(ctx).With("gateway", "socketio", "url", cfg.URL, "namespace", cfg.Namespace)

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gateway URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("gateway URL %q must include scheme and host", cfg.URL)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	g := &Gateway{cfg: cfg}
	g.manager = socket.NewManager(baseURL, opts)
	g.io = g.manager.Socket(cfg.Namespace, opts)

	ready := make(chan error, 1)
	g.io.On(types.EventName("connect"), func(...any) {
		g.connected.Store(true)
		logger.Info("Connected to host plugin", "sid", g.io.Id())
		select {
		case ready <- nil:
		default:
		}
	})
	g.io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case ready <- err:
		default:
		}
	})
	g.io.On(types.EventName("disconnect"), func(reason ...any) {
		g.connected.Store(false)
		logger.Warn("Disconnected from host plugin", "reason", fmt.Sprint(reason...))
	})

	g.io.Connect()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	select {
	case err := <-ready:
		if err != nil {
			g.io.Disconnect()
			return nil, fmt.Errorf("failed to connect to host plugin: %w", err)
		}
	case <-dialCtx.Done():
		g.io.Disconnect()
		return nil, fmt.Errorf("timed out connecting to host plugin at %s", cfg.URL)
	}
	return g, nil
}

// Close disconnects from the plugin.
func (g *Gateway) Close() error {
	g.io.Disconnect()
	return nil
}

func (g *Gateway) FindOpenDocument(ctx context.Context, path string) (*gateway.Document, error) {
	r, err := g.call(ctx, EventFindDocument, map[string]any{"path": path})
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

func (g *Gateway) ActiveDocument(ctx context.Context) (*gateway.Document, error) {
	r, err := g.call(ctx, EventActiveDocument, map[string]any{"type": "part"})
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

func (g *Gateway) ImportGeometry(ctx context.Context, into *gateway.Document, sourcePath string) error {
	_, err := g.call(ctx, EventImport, importPayload(into, sourcePath, g.cfg.NewDocumentPath))
	return err
}

func (g *Gateway) ExportGeometryAsOBJ(ctx context.Context, doc *gateway.Document, destinationPath string, opts gateway.ExportOptions) error {
	if doc == nil {
		return errors.New("export requires an open document")
	}
	_, err := g.call(ctx, EventExportOBJ, map[string]any{
		"document":     doc.ID,
		"destination":  destinationPath,
		"bringToFront": opts.BringToFront,
	})
	return err
}

func importPayload(into *gateway.Document, sourcePath, newDocumentPath string) map[string]any {
	payload := map[string]any{"source": sourcePath, "units": "mm"}
	if into != nil {
		payload["document"] = into.ID
	} else {
		payload["saveAs"] = newDocumentPath
	}
	return payload
}

// call emits event with payload and waits for the acknowledgement.
func (g *Gateway) call(ctx context.Context, event string, payload map[string]any) (*reply, error) {
	logger := ctxlog.FromContext(ctx).With("event", event)
	if !g.connected.Load() {
		return nil, fmt.Errorf("%s: not connected to host plugin", event)
	}

	type result struct {
		r   *reply
		err error
	}
	done := make(chan result, 1)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	logger.Debug("Sending request to host plugin")
	g.io.Emit(event, payload, func(args []any, err error) {
		if err != nil {
			done <- result{err: err}
			return
		}
		r, err := decodeReply(event, args)
		done <- result{r: r, err: err}
	})

	select {
	case <-callCtx.Done():
		return nil, fmt.Errorf("%s: no acknowledgement from host plugin: %w", event, callCtx.Err())
	case res := <-done:
		if res.err != nil {
			logger.Debug("Host plugin request failed", "error", res.err)
		}
		return res.r, res.err
	}
}

// decodeReply turns acknowledgement arguments into a reply.
func decodeReply(event string, args []any) (*reply, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: empty acknowledgement", event)
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: cannot encode acknowledgement: %w", event, err)
	}
	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%s: malformed acknowledgement: %w", event, err)
	}
	if !r.OK {
		return nil, &RemoteError{Event: event, Code: r.Code, Message: r.Error}
	}
	return &r, nil
}
