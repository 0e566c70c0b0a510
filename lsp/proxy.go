// Package lsp implements a Language Server Protocol proxy for .zx files.
// It compiles open .zx documents in memory, hands the generated Go to gopls
// and translates URIs and positions between the two files.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/germtb/zx/compiler"
	"github.com/germtb/zx/generator"
	"github.com/germtb/zx/lexer"
	"github.com/germtb/zx/parser"
)

// JSON-RPC error codes.
const (
	codeInvalidParams = -32602
	codeInternalError = -32603
)

// textDocumentSyncFull asks the editor to send whole documents on change.
const textDocumentSyncFull = 1

// Config configures a Proxy.
type Config struct {
	// Gopls is the gopls binary. It is looked up in PATH and the usual Go
	// bin directories when empty.
	Gopls string

	// Logger receives protocol traces. Nothing is logged when nil.
	Logger *log.Logger
}

// document is an open .zx file.
type document struct {
	uri    string
	goURI  string
	text   string
	sm     *generator.SourceMap // nil until the document compiles
	err    error                // last compile error
	opened bool                 // gopls has seen didOpen for goURI
}

// pending is a request forwarded to gopls and awaiting its response.
type pending struct {
	method string
	uri    string // .zx document the request is about
}

// Proxy sits between the editor and gopls.
type Proxy struct {
	cfg Config
	log *log.Logger

	mu      sync.RWMutex
	docs    map[string]*document // .zx URI -> document
	pending map[string]pending   // request id -> request

	outMu sync.Mutex
}

// New creates a proxy.
func New(cfg Config) *Proxy {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Proxy{
		cfg:     cfg,
		log:     logger,
		docs:    make(map[string]*document),
		pending: make(map[string]pending),
	}
}

// Serve starts gopls and proxies messages between it and the editor until
// either side closes its stream or ctx is done.
func (p *Proxy) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	goplsPath := p.cfg.Gopls
	if goplsPath == "" {
		goplsPath = findGopls()
	}
	if goplsPath == "" {
		return errors.New("gopls not found. Install with: go install golang.org/x/tools/gopls@latest")
	}
	p.log.Printf("using gopls at %s", goplsPath)

	cmd := exec.CommandContext(ctx, goplsPath, "serve")
	goplsIn, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("gopls stdin: %w", err)
	}
	goplsOut, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("gopls stdout: %w", err)
	}
	cmd.Stderr = p.log.Writer()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting gopls: %w", err)
	}
	p.log.Printf("started gopls (pid %d)", cmd.Process.Pid)

	done := make(chan error, 2)
	go func() {
		done <- p.fromEditor(in, out, goplsIn)
		goplsIn.Close()
	}()
	go func() {
		done <- p.fromGopls(goplsOut, out)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	cmd.Process.Kill()
	cmd.Wait()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// findGopls looks for gopls in PATH and common locations.
func findGopls() string {
	if path, err := exec.LookPath("gopls"); err == nil {
		return path
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "go", "bin", "gopls"),
		"/usr/local/go/bin/gopls",
		"/usr/local/bin/gopls",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (p *Proxy) fromEditor(in io.Reader, editor, gopls io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		msg, err := readMessage(reader)
		if err != nil {
			return fmt.Errorf("reading from editor: %w", err)
		}

		forward, replies := p.handleEditor(msg)
		for _, reply := range replies {
			if err := p.send(editor, reply); err != nil {
				return fmt.Errorf("writing to editor: %w", err)
			}
		}
		if forward != nil {
			if err := writeMessage(gopls, forward); err != nil {
				return fmt.Errorf("writing to gopls: %w", err)
			}
		}
	}
}

func (p *Proxy) fromGopls(in io.Reader, editor io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		msg, err := readMessage(reader)
		if err != nil {
			return fmt.Errorf("reading from gopls: %w", err)
		}
		if err := p.send(editor, p.handleGopls(msg)); err != nil {
			return fmt.Errorf("writing to editor: %w", err)
		}
	}
}

// send writes to the editor, which both directions share.
func (p *Proxy) send(w io.Writer, body []byte) error {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	return writeMessage(w, body)
}

// handleEditor processes a message from the editor. It returns the message
// to forward to gopls, if any, and messages to send straight back.
func (p *Proxy) handleEditor(msg []byte) (forward []byte, replies [][]byte) {
	var obj map[string]any
	if err := json.Unmarshal(msg, &obj); err != nil {
		return msg, nil
	}

	method, _ := obj["method"].(string)
	uri := documentURI(obj)
	if method != "" {
		p.log.Printf("-> %s %s", method, uri)
	}

	if isZX(uri) {
		switch method {
		case "textDocument/didOpen":
			return p.didOpen(obj, uri)
		case "textDocument/didChange":
			return p.didChange(obj, uri)
		case "textDocument/didClose":
			return p.didClose(obj, uri)
		case "textDocument/formatting":
			return nil, [][]byte{p.formatting(obj, uri)}
		case "textDocument/codeAction":
			return nil, [][]byte{successResponse(obj["id"], []any{})}
		}
	}

	if id, ok := obj["id"]; ok && method != "" {
		p.mu.Lock()
		p.pending[idKey(id)] = pending{method: method, uri: uri}
		p.mu.Unlock()
	}

	p.rewrite(obj, toGo, nil)
	return marshal(obj), nil
}

// handleGopls rewrites a message from gopls for the editor.
func (p *Proxy) handleGopls(msg []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(msg, &obj); err != nil {
		return msg
	}

	var sm *generator.SourceMap
	if id, ok := obj["id"]; ok && obj["method"] == nil {
		p.mu.Lock()
		req, found := p.pending[idKey(id)]
		delete(p.pending, idKey(id))
		if doc := p.docs[req.uri]; found && doc != nil {
			sm = doc.sm
		}
		p.mu.Unlock()

		if errObj, ok := obj["error"]; ok {
			p.log.Printf("<- error id=%v: %v", id, errObj)
		}
		if req.method == "initialize" {
			forceFullSync(obj)
		}
	}
	if method, ok := obj["method"].(string); ok {
		p.log.Printf("<- %s", method)
	}

	p.rewrite(obj, toEditor, sm)
	return marshal(obj)
}

// forceFullSync switches the initialize result to full document sync.
func forceFullSync(resp map[string]any) {
	result, _ := resp["result"].(map[string]any)
	caps, _ := result["capabilities"].(map[string]any)
	if caps == nil {
		return
	}
	if opts, ok := caps["textDocumentSync"].(map[string]any); ok {
		opts["change"] = textDocumentSyncFull
		return
	}
	caps["textDocumentSync"] = textDocumentSyncFull
}

func (p *Proxy) didOpen(obj map[string]any, uri string) ([]byte, [][]byte) {
	textDoc := obj["params"].(map[string]any)["textDocument"].(map[string]any)
	text, _ := textDoc["text"].(string)

	doc, goSrc, replies := p.update(uri, text)
	if goSrc == "" {
		return nil, replies
	}
	p.mu.Lock()
	doc.opened = true
	p.mu.Unlock()
	textDoc["uri"] = doc.goURI
	textDoc["text"] = goSrc
	textDoc["languageId"] = "go"
	return marshal(obj), replies
}

func (p *Proxy) didChange(obj map[string]any, uri string) ([]byte, [][]byte) {
	params := obj["params"].(map[string]any)
	changes, _ := params["contentChanges"].([]any)
	if len(changes) == 0 {
		return nil, nil
	}
	last, _ := changes[len(changes)-1].(map[string]any)
	text, _ := last["text"].(string)

	doc, goSrc, replies := p.update(uri, text)
	if goSrc == "" {
		return nil, replies
	}

	textDoc := params["textDocument"].(map[string]any)
	if !doc.opened {
		p.mu.Lock()
		doc.opened = true
		p.mu.Unlock()
		open := map[string]any{
			"jsonrpc": "2.0",
			"method":  "textDocument/didOpen",
			"params": map[string]any{
				"textDocument": map[string]any{
					"uri":        doc.goURI,
					"languageId": "go",
					"version":    textDoc["version"],
					"text":       goSrc,
				},
			},
		}
		return marshal(open), replies
	}

	textDoc["uri"] = doc.goURI
	params["contentChanges"] = []any{map[string]any{"text": goSrc}}
	return marshal(obj), replies
}

func (p *Proxy) didClose(obj map[string]any, uri string) ([]byte, [][]byte) {
	p.mu.Lock()
	doc := p.docs[uri]
	delete(p.docs, uri)
	p.mu.Unlock()

	if doc == nil || !doc.opened {
		return nil, nil
	}
	obj["params"].(map[string]any)["textDocument"].(map[string]any)["uri"] = doc.goURI
	return marshal(obj), nil
}

// update stores the new text of a document and compiles it. goSrc is empty
// when compilation fails, in which case replies carry the diagnostic.
func (p *Proxy) update(uri, text string) (doc *document, goSrc string, replies [][]byte) {
	path := uriToPath(uri)
	p.mu.Lock()
	defer p.mu.Unlock()

	doc = p.docs[uri]
	if doc == nil {
		doc = &document{uri: uri, goURI: pathToURI(compiler.GoPath(path))}
		p.docs[uri] = doc
	}
	doc.text = text
	hadErr := doc.err != nil

	res, err := compiler.Compile([]byte(text), &compiler.Options{
		Path:           path,
		SourceMap:      compiler.SourceMapFile,
		RuntimePackage: generator.DefaultRuntimePackage,
	})
	var sm *generator.SourceMap
	if err == nil {
		sm, err = generator.FromJSON(res.SourceMap)
	}
	doc.err = err
	if err != nil {
		p.log.Printf("compile %s: %v", path, err)
		return doc, "", [][]byte{publishDiagnostics(uri, []any{diagnostic(err)})}
	}

	doc.sm = sm
	p.log.Printf("compiled %s (%d bytes)", path, len(res.Source))
	if hadErr {
		replies = append(replies, publishDiagnostics(uri, []any{}))
	}
	return doc, string(res.Source), replies
}

// diagnostic converts a compile error to an LSP diagnostic.
func diagnostic(err error) map[string]any {
	line, col, msg := 1, 1, err.Error()

	var lexErr *lexer.Error
	var parseErr *parser.Error
	var genErr *generator.Error
	switch {
	case errors.As(err, &lexErr):
		line, col, msg = lexErr.Line, lexErr.Column, lexErr.Kind.String()
		if lexErr.Msg != "" {
			msg += ": " + lexErr.Msg
		}
	case errors.As(err, &parseErr):
		line, col, msg = parseErr.Pos.Line, parseErr.Pos.Column, parseErr.Msg
	case errors.As(err, &genErr):
		line, col, msg = genErr.Pos.Line, genErr.Pos.Column, genErr.Msg
	}

	pos := map[string]any{"line": max(line-1, 0), "character": max(col-1, 0)}
	return map[string]any{
		"range":    map[string]any{"start": pos, "end": pos},
		"severity": 1,
		"source":   "zx",
		"message":  msg,
	}
}

func publishDiagnostics(uri string, diagnostics []any) []byte {
	return marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params":  map[string]any{"uri": uri, "diagnostics": diagnostics},
	})
}

// formatting formats a .zx document and answers with a single edit that
// replaces the whole file.
func (p *Proxy) formatting(req map[string]any, uri string) []byte {
	id := req["id"]
	path := uriToPath(uri)

	p.mu.RLock()
	doc := p.docs[uri]
	p.mu.RUnlock()

	var content string
	if doc != nil {
		content = doc.text
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return errorResponse(id, codeInvalidParams, "file not found: "+path)
		}
		content = string(data)
	}

	formatted, changed, err := compiler.Format(path, []byte(content))
	if err != nil {
		return errorResponse(id, codeInternalError, err.Error())
	}
	if !changed {
		return successResponse(id, []any{})
	}

	lines := strings.Split(content, "\n")
	endLine := len(lines) - 1
	edit := map[string]any{
		"range": map[string]any{
			"start": map[string]any{"line": 0, "character": 0},
			"end":   map[string]any{"line": endLine, "character": len(lines[endLine])},
		},
		"newText": string(formatted),
	}
	p.log.Printf("formatted %s (%d -> %d bytes)", path, len(content), len(formatted))
	return successResponse(id, []any{edit})
}

type direction int

const (
	toGo direction = iota
	toEditor
)

// rewrite translates URIs and the positions below them. sm maps the
// positions of the enclosing document; it is replaced whenever a nested
// object names another document.
func (p *Proxy) rewrite(v any, dir direction, sm *generator.SourceMap) {
	switch v := v.(type) {
	case map[string]any:
		for _, key := range []string{"uri", "targetUri"} {
			if uri, ok := v[key].(string); ok {
				v[key], sm = p.mapURI(uri, dir)
			}
		}
		if textDoc, ok := v["textDocument"].(map[string]any); ok {
			if uri, ok := textDoc["uri"].(string); ok {
				textDoc["uri"], sm = p.mapURI(uri, dir)
			}
		}

		if sm != nil && isPosition(v) {
			translate(v, dir, sm)
			return
		}
		for key, val := range v {
			if key != "textDocument" {
				p.rewrite(val, dir, sm)
			}
		}
	case []any:
		for _, item := range v {
			p.rewrite(item, dir, sm)
		}
	}
}

// mapURI returns the URI on the other side and the source map of its
// document, if open.
func (p *Proxy) mapURI(uri string, dir direction) (string, *generator.SourceMap) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if dir == toGo {
		if !isZX(uri) {
			return uri, nil
		}
		if doc := p.docs[uri]; doc != nil {
			return doc.goURI, doc.sm
		}
		return pathToURI(compiler.GoPath(uriToPath(uri))), nil
	}

	for _, doc := range p.docs {
		if doc.goURI == uri {
			return doc.uri, doc.sm
		}
	}
	return uri, nil
}

func isPosition(v map[string]any) bool {
	_, line := v["line"].(float64)
	_, char := v["character"].(float64)
	return line && char
}

// translate moves an LSP position between the .zx file and the generated
// Go. Positions without a mapping are left alone.
func translate(pos map[string]any, dir direction, sm *generator.SourceMap) {
	line := uint32(pos["line"].(float64))
	char := uint32(pos["character"].(float64))

	var to generator.Position
	var ok bool
	if dir == toGo {
		to, ok = sm.Generated(line, char)
	} else {
		to, ok = sm.Original(line, char)
	}
	if ok {
		pos["line"] = float64(to.Line)
		pos["character"] = float64(to.Column)
	}
}

// documentURI returns params.textDocument.uri, or "".
func documentURI(obj map[string]any) string {
	params, _ := obj["params"].(map[string]any)
	textDoc, _ := params["textDocument"].(map[string]any)
	uri, _ := textDoc["uri"].(string)
	return uri
}

func isZX(uri string) bool {
	return strings.HasSuffix(uri, ".zx")
}

func idKey(id any) string {
	return fmt.Sprint(id)
}

func marshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

func successResponse(id, result any) []byte {
	return marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func errorResponse(id any, code int, message string) []byte {
	return marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func readMessage(r *bufio.Reader) ([]byte, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if length, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			contentLength, _ = strconv.Atoi(strings.TrimSpace(length))
		}
	}

	if contentLength == 0 {
		return nil, errors.New("no Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeMessage(w io.Writer, body []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func pathToURI(path string) string {
	if !strings.HasPrefix(path, "file://") {
		return "file://" + path
	}
	return path
}
