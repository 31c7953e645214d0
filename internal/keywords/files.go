package keywords

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

// fileIOTimeout is the 60s default the ordinary file verbs use;
// transferTimeout matches spec.md §4.10's suspension-point table (300s
// for upload/download); pdfTimeout matches the 120s PDF/SOAP budget.
const (
	fileIOTimeout   = 60 * time.Second
	transferTimeout = 300 * time.Second
	pdfTimeout      = 120 * time.Second
)

// FileStore is the read/write drive-object contract the Files &
// archives verb group needs: C6's ObjectStore (internal/drive) List/Get
// plus Put/Delete, both now implemented by *drive.S3Store and
// *drive.LocalFileStore.
type FileStore interface {
	List(ctx context.Context, bucket string) ([]models.DriveObject, error)
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	Put(ctx context.Context, bucket, path string, data []byte) error
	Delete(ctx context.Context, bucket, path string) error
}

// RegisterFiles wires READ/WRITE/DELETE_FILE/COPY/MOVE/LIST/COMPRESS/
// EXTRACT/UPLOAD/DOWNLOAD/GENERATE_PDF/MERGE_PDF for one session's
// evaluation (spec.md §4.4's Files & archives group). client is used
// only by DOWNLOAD and may be nil if the bot never calls it.
func RegisterFiles(e *expr.Engine, sc SessionContext, store FileStore, client HTTPClient) error {
	f := &filesVerbs{sc: sc, store: store, client: client}
	verbs := map[string]expr.Handler{
		"READ":         f.read,
		"WRITE":        f.write,
		"DELETE_FILE":  f.deleteFile,
		"COPY":         f.copy,
		"MOVE":         f.move,
		"LIST":         f.list,
		"COMPRESS":     f.compress,
		"EXTRACT":      f.extract,
		"UPLOAD":       f.upload,
		"DOWNLOAD":     f.download,
		"GENERATE_PDF": f.generatePDF,
		"MERGE_PDF":    f.mergePDF,
	}
	for name, handler := range verbs {
		if err := e.RegisterSyntax(name, true, handler); err != nil {
			return fmt.Errorf("keywords: register %s: %w", name, err)
		}
	}
	return nil
}

type filesVerbs struct {
	sc     SessionContext
	store  FileStore
	client HTTPClient
}

// validateDrivePath rejects anything that could escape the bot's drive
// namespace (spec.md §4.4): "..", absolute paths, drive letters, and
// glob metacharacters no verb needs to accept.
func validateDrivePath(p string) error {
	if p == "" {
		return NewError(KindInvalidArgument, "path must not be empty")
	}
	if strings.Contains(p, "..") {
		return NewError(KindInvalidArgument, "path must not contain \"..\"")
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return NewError(KindInvalidArgument, "path must not be absolute")
	}
	if len(p) >= 2 && p[1] == ':' {
		return NewError(KindInvalidArgument, "path must not include a drive letter")
	}
	if strings.ContainsAny(p, "*?[]{}~") {
		return NewError(KindInvalidArgument, "path contains an unsupported glob character")
	}
	return nil
}

func (f *filesVerbs) read(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "READ requires (path)")
	}
	p := toString(args[0])
	if err := validateDrivePath(p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	data, err := f.store.Get(ctx, f.sc.BotID, p)
	if err != nil {
		return nil, Wrap(KindUpstream, "READ: "+p, err)
	}
	return string(data), nil
}

func (f *filesVerbs) write(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "WRITE requires (path, data)")
	}
	p := toString(args[0])
	if err := validateDrivePath(p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	if err := f.store.Put(ctx, f.sc.BotID, p, []byte(toString(args[1]))); err != nil {
		return nil, Wrap(KindUpstream, "WRITE: "+p, err)
	}
	return nil, nil
}

func (f *filesVerbs) deleteFile(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 1 {
		return nil, NewError(KindInvalidArgument, "DELETE FILE requires (path)")
	}
	p := toString(args[0])
	if err := validateDrivePath(p); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	if err := f.store.Delete(ctx, f.sc.BotID, p); err != nil {
		return nil, Wrap(KindUpstream, "DELETE FILE: "+p, err)
	}
	return nil, nil
}

func (f *filesVerbs) copy(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "COPY requires (src, dst)")
	}
	src, dst := toString(args[0]), toString(args[1])
	if err := validateDrivePath(src); err != nil {
		return nil, err
	}
	if err := validateDrivePath(dst); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	data, err := f.store.Get(ctx, f.sc.BotID, src)
	if err != nil {
		return nil, Wrap(KindUpstream, "COPY: read "+src, err)
	}
	if err := f.store.Put(ctx, f.sc.BotID, dst, data); err != nil {
		return nil, Wrap(KindUpstream, "COPY: write "+dst, err)
	}
	return nil, nil
}

func (f *filesVerbs) move(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if _, err := f.copy(cc, args); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	if err := f.store.Delete(ctx, f.sc.BotID, toString(args[0])); err != nil {
		return nil, Wrap(KindUpstream, "MOVE: removing source failed", err)
	}
	return nil, nil
}

func (f *filesVerbs) list(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) > 1 {
		return nil, NewError(KindInvalidArgument, "LIST accepts at most one argument (dir)")
	}
	var prefix string
	if len(args) == 1 {
		prefix = toString(args[0])
		if err := validateDrivePath(prefix); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()
	objs, err := f.store.List(ctx, f.sc.BotID)
	if err != nil {
		return nil, Wrap(KindUpstream, "LIST: "+prefix, err)
	}
	out := make([]any, 0, len(objs))
	for _, o := range objs {
		if prefix == "" || strings.HasPrefix(o.Path, prefix) {
			out = append(out, o.Path)
		}
	}
	return out, nil
}

// compress reads every listed file under the bot's drive namespace and
// writes a ZIP archive to dst via archive/zip (stdlib — no ecosystem
// zip library appears anywhere in the example pack).
func (f *filesVerbs) compress(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "COMPRESS requires (files, archive)")
	}
	files, ok := args[0].([]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "COMPRESS: files must be a list of paths")
	}
	dst := toString(args[1])
	if err := validateDrivePath(dst); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, item := range files {
		name := toString(item)
		if err := validateDrivePath(name); err != nil {
			return nil, err
		}
		data, err := f.store.Get(ctx, f.sc.BotID, name)
		if err != nil {
			return nil, Wrap(KindUpstream, "COMPRESS: read "+name, err)
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, Wrap(KindInternal, "COMPRESS: creating zip entry "+name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, Wrap(KindInternal, "COMPRESS: writing zip entry "+name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, Wrap(KindInternal, "COMPRESS: closing archive", err)
	}
	if err := f.store.Put(ctx, f.sc.BotID, dst, buf.Bytes()); err != nil {
		return nil, Wrap(KindUpstream, "COMPRESS: write "+dst, err)
	}
	return nil, nil
}

// extract unpacks a ZIP archive from the drive namespace into dir,
// preserving each entry's relative path under dir.
func (f *filesVerbs) extract(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "EXTRACT requires (archive, dir)")
	}
	archivePath, dir := toString(args[0]), toString(args[1])
	if err := validateDrivePath(archivePath); err != nil {
		return nil, err
	}
	if err := validateDrivePath(dir); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), fileIOTimeout)
	defer cancel()

	data, err := f.store.Get(ctx, f.sc.BotID, archivePath)
	if err != nil {
		return nil, Wrap(KindUpstream, "EXTRACT: read "+archivePath, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "EXTRACT: not a valid zip archive: "+err.Error())
	}
	var extracted []any
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if err := validateDrivePath(zf.Name); err != nil {
			return nil, Wrap(KindInvalidArgument, "EXTRACT: unsafe entry name "+zf.Name, err)
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, Wrap(KindInternal, "EXTRACT: opening entry "+zf.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, Wrap(KindInternal, "EXTRACT: reading entry "+zf.Name, err)
		}
		dst := path.Join(dir, zf.Name)
		if err := f.store.Put(ctx, f.sc.BotID, dst, content); err != nil {
			return nil, Wrap(KindUpstream, "EXTRACT: write "+dst, err)
		}
		extracted = append(extracted, dst)
	}
	return extracted, nil
}

// upload copies a file already present under the drive namespace to dst
// (a longer-budget counterpart to COPY, matching spec.md §4.10's 300s
// upload timeout for transfers expected to move larger payloads).
func (f *filesVerbs) upload(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "UPLOAD requires (file, dst)")
	}
	src, dst := toString(args[0]), toString(args[1])
	if err := validateDrivePath(src); err != nil {
		return nil, err
	}
	if err := validateDrivePath(dst); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), transferTimeout)
	defer cancel()
	data, err := f.store.Get(ctx, f.sc.BotID, src)
	if err != nil {
		return nil, Wrap(KindUpstream, "UPLOAD: read "+src, err)
	}
	if err := f.store.Put(ctx, f.sc.BotID, dst, data); err != nil {
		return nil, Wrap(KindUpstream, "UPLOAD: write "+dst, err)
	}
	return nil, nil
}

// download fetches a URL and writes the body under the drive namespace.
func (f *filesVerbs) download(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "DOWNLOAD requires (url, path)")
	}
	if f.client == nil {
		return nil, NewError(KindInvalidArgument, "DOWNLOAD: HTTP client not configured")
	}
	url, dst := toString(args[0]), toString(args[1])
	if err := validateDrivePath(dst); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(contextFrom(cc), transferTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(KindInvalidArgument, "DOWNLOAD: invalid url: "+err.Error())
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Wrap(KindUpstream, "DOWNLOAD: "+url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Wrap(KindUpstream, "DOWNLOAD: reading body failed", err)
	}
	if err := f.store.Put(ctx, f.sc.BotID, dst, body); err != nil {
		return nil, Wrap(KindUpstream, "DOWNLOAD: write "+dst, err)
	}
	return nil, nil
}

// generatePDF renders a text/template (the same engine data.go's FILL
// uses) against data, wraps the rendered text in a minimal single-page
// PDF, and writes it to output. github.com/ledongthuc/pdf has no
// write/compose API, so the page body here is produced by a small
// stdlib-only compositor (justified in DESIGN.md).
func (f *filesVerbs) generatePDF(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 3 {
		return nil, NewError(KindInvalidArgument, "GENERATE_PDF requires (template, data, output)")
	}
	output := toString(args[2])
	if err := validateDrivePath(output); err != nil {
		return nil, err
	}
	tmpl, err := template.New("pdf").Parse(toString(args[0]))
	if err != nil {
		return nil, NewError(KindInvalidArgument, "GENERATE_PDF: invalid template: "+err.Error())
	}
	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, args[1]); err != nil {
		return nil, Wrap(KindInvalidArgument, "GENERATE_PDF: template execution failed", err)
	}

	ctx, cancel := context.WithTimeout(contextFrom(cc), pdfTimeout)
	defer cancel()
	if err := f.store.Put(ctx, f.sc.BotID, output, buildPDF([]string{rendered.String()})); err != nil {
		return nil, Wrap(KindUpstream, "GENERATE_PDF: write "+output, err)
	}
	return map[string]any{"url": drivePathURL(f.sc.BotID, output), "localName": path.Base(output)}, nil
}

// mergePDF reads each source PDF's plain text per page via
// github.com/ledongthuc/pdf (grounded on kadirpekel-hector's RAG
// ingestion use of the same library) and recomposes them as a single
// PDF with the stdlib compositor generatePDF uses.
func (f *filesVerbs) mergePDF(cc *expr.CallContext, args []expr.Value) (expr.Value, error) {
	if len(args) != 2 {
		return nil, NewError(KindInvalidArgument, "MERGE_PDF requires (files, output)")
	}
	files, ok := args[0].([]any)
	if !ok {
		return nil, NewError(KindInvalidArgument, "MERGE_PDF: files must be a list of paths")
	}
	output := toString(args[1])
	if err := validateDrivePath(output); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(contextFrom(cc), pdfTimeout)
	defer cancel()

	var pages []string
	for _, item := range files {
		name := toString(item)
		if err := validateDrivePath(name); err != nil {
			return nil, err
		}
		data, err := f.store.Get(ctx, f.sc.BotID, name)
		if err != nil {
			return nil, Wrap(KindUpstream, "MERGE_PDF: read "+name, err)
		}
		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, NewError(KindInvalidArgument, "MERGE_PDF: not a valid PDF: "+name)
		}
		for n := 1; n <= reader.NumPage(); n++ {
			page := reader.Page(n)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				text = fmt.Sprintf("(page %d of %s could not be extracted)", n, name)
			}
			pages = append(pages, text)
		}
	}
	if err := f.store.Put(ctx, f.sc.BotID, output, buildPDF(pages)); err != nil {
		return nil, Wrap(KindUpstream, "MERGE_PDF: write "+output, err)
	}
	return map[string]any{"url": drivePathURL(f.sc.BotID, output), "localName": path.Base(output)}, nil
}

func drivePathURL(botID, p string) string {
	return fmt.Sprintf("/drive/%s/%s", botID, p)
}

// buildPDF composes a minimal single-or-multi-page PDF from plain-text
// pages: one Type1 Helvetica content stream per page, hand-rolled since
// github.com/ledongthuc/pdf only reads, never writes.
func buildPDF(pages []string) []byte {
	if len(pages) == 0 {
		pages = []string{""}
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	n := len(pages)
	fontObj := 3 + n
	firstContentObj := fontObj + 1

	var offsets []int
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		addObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 %d 0 R >> >> /MediaBox [0 0 612 792] /Contents %d 0 R >>\nendobj\n",
			3+i, fontObj, firstContentObj+i))
	}
	addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj))
	for i, text := range pages {
		stream := pdfContentStream(text)
		addObj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", firstContentObj+i, len(stream), stream))
	}

	xrefStart := buf.Len()
	total := firstContentObj + n
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", total)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", total, xrefStart)
	return buf.Bytes()
}

func pdfContentStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 740 Td\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escapePDFString(line))
	}
	b.WriteString("ET")
	return b.String()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
