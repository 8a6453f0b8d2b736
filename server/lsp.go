package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/pkg/bytecode"
	"github.com/chazu/lox/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "lox-lsp"

var log = commonlog.GetLogger("lox.server")

// LspServer publishes compile diagnostics for open lox documents and
// evaluates them on hover.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. Hover evaluation runs on a VM built
// with opts.
func NewLSP(opts ...vm.Option) *LspServer {
	s := &LspServer{
		worker:  NewVMWorker(vm.New(opts...)),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("lox LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("lox LSP shutting down")
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(text, extractWord(text, params.Position))
}

// complete returns the keywords starting with prefix, sorted.
func complete(prefix string) []protocol.CompletionItem {
	kind := protocol.CompletionItemKindKeyword

	var items []protocol.CompletionItem
	for _, kw := range compiler.Keywords() {
		if strings.HasPrefix(kw, prefix) && kw != prefix {
			items = append(items, protocol.CompletionItem{
				Label: kw,
				Kind:  &kind,
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// hover describes the word under the cursor and, when the document is a
// valid expression, the value it evaluates to.
func (s *LspServer) hover(text, word string) (*protocol.Hover, error) {
	var sb strings.Builder

	if word != "" {
		if tt := compiler.LookupIdent(word); tt != compiler.TokenIdentifier {
			fmt.Fprintf(&sb, "keyword `%s`\n\n", word)
		}
	}

	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		value, err := v.Evaluate(text)
		if err != nil {
			return err
		}
		return value
	})
	if err != nil {
		return nil, err
	}

	switch r := result.(type) {
	case bytecode.Value:
		fmt.Fprintf(&sb, "```lox\n%s\n```", r)
	case *vm.RuntimeError:
		fmt.Fprintf(&sb, "runtime error: %s", r.Message)
	}

	if sb.Len() == 0 {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: sb.String(),
		},
	}, nil
}

// --- Diagnostics ---

// Diagnostics compiles text and returns one error diagnostic per compile
// error. Lines are zero-based and characters count UTF-16 code units as LSP
// requires. Lexical errors cover at least the offending character.
func Diagnostics(text string) []protocol.Diagnostic {
	err := compiler.Compile(text, bytecode.NewChunk())
	if err == nil {
		return []protocol.Diagnostic{}
	}

	var list compiler.ErrorList
	if !errors.As(err, &list) {
		return []protocol.Diagnostic{newDiagnostic(protocol.Range{}, protocol.DiagnosticSeverityError, err.Error())}
	}

	lines := strings.Split(text, "\n")
	diagnostics := make([]protocol.Diagnostic, 0, len(list))
	for _, e := range list {
		lineNo := max(e.Line-1, 0)
		var line string
		if lineNo < len(lines) {
			line = lines[lineNo]
		}

		// Columns and lengths are byte counts; a lexeme running past the
		// end of its first line is cut there.
		from := min(max(e.Column-1, 0), len(line))
		to := min(from+e.Length, len(line))
		if e.Token == compiler.TokenError && to == from && from < len(line) {
			_, size := utf8.DecodeRuneInString(line[from:])
			to = from + size
		}

		rng := protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(lineNo), Character: utf16Column(line, from)},
			End:   protocol.Position{Line: protocol.UInteger(lineNo), Character: utf16Column(line, to)},
		}
		diagnostics = append(diagnostics, newDiagnostic(rng, protocol.DiagnosticSeverityError, e.Message))
	}
	return diagnostics
}

// utf16Column converts a byte offset within line to UTF-16 code units.
func utf16Column(line string, offset int) protocol.UInteger {
	offset = min(max(offset, 0), len(line))
	var n int
	for _, r := range line[:offset] {
		n += utf16.RuneLen(r)
	}
	return protocol.UInteger(n)
}

// byteOffset converts a UTF-16 character position within line to a byte
// offset, clamped to the line length.
func byteOffset(line string, character protocol.UInteger) int {
	var n protocol.UInteger
	for i, r := range line {
		if n >= character {
			return i
		}
		n += protocol.UInteger(utf16.RuneLen(r))
	}
	return len(line)
}

// runtimeDiagnostic evaluates text and reports a runtime error as a warning
// covering its line, or nil when evaluation succeeds.
func (s *LspServer) runtimeDiagnostic(text string) *protocol.Diagnostic {
	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		_, err := v.Evaluate(text)
		return err
	})
	if err != nil {
		log.Warningf("evaluating document: %s", err)
		return nil
	}

	rerr, ok := result.(*vm.RuntimeError)
	if !ok {
		return nil
	}

	line := protocol.UInteger(max(rerr.Line-1, 0))
	lines := strings.Split(text, "\n")
	var width protocol.UInteger
	if int(line) < len(lines) {
		width = utf16Column(lines[line], len(lines[line]))
	}
	d := newDiagnostic(
		protocol.Range{
			Start: protocol.Position{Line: line},
			End:   protocol.Position{Line: line, Character: width},
		},
		protocol.DiagnosticSeverityWarning,
		rerr.Message,
	)
	return &d
}

func newDiagnostic(rng protocol.Range, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := Diagnostics(text)
	if len(diagnostics) == 0 {
		if d := s.runtimeDiagnostic(text); d != nil {
			diagnostics = append(diagnostics, *d)
		}
	}
	log.Debugf("%s: %d diagnostic(s)", uri, len(diagnostics))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteOffset(line, pos.Character)

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteOffset(line, pos.Character)

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}

	return line[start:end]
}

func isWordChar(c byte) bool {
	ch := rune(c)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
