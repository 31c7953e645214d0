package keywords

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/generalbots/botcore/internal/expr"
	"github.com/generalbots/botcore/pkg/models"
)

type fakeFileStore struct {
	objects map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{objects: map[string][]byte{}}
}

func (f *fakeFileStore) List(_ context.Context, _ string) ([]models.DriveObject, error) {
	out := make([]models.DriveObject, 0, len(f.objects))
	for p, data := range f.objects {
		out = append(out, models.DriveObject{Path: p, Size: int64(len(data))})
	}
	return out, nil
}

func (f *fakeFileStore) Get(_ context.Context, _, path string) ([]byte, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, NewError(KindNotFound, "no such object: "+path)
	}
	return data, nil
}

func (f *fakeFileStore) Put(_ context.Context, _, path string, data []byte) error {
	f.objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFileStore) Delete(_ context.Context, _, path string) error {
	delete(f.objects, path)
	return nil
}

func newFilesEngine(t *testing.T, client HTTPClient) (*expr.Engine, *fakeFileStore) {
	t.Helper()
	store := newFakeFileStore()
	e := expr.NewEngine()
	sc := SessionContext{BotID: "bot1", SessionID: "s1"}
	if err := RegisterFiles(e, sc, store, client); err != nil {
		t.Fatalf("register files verbs: %v", err)
	}
	return e, store
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	e, _ := newFilesEngine(t, nil)
	run(t, e, `WRITE(".gbdrive/notes.txt", "hello")`)
	got := run(t, e, `READ(".gbdrive/notes.txt")`)
	if got != "hello" {
		t.Fatalf("expected hello, got %v", got)
	}
}

func TestDeleteFileRemovesObject(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	run(t, e, `WRITE("notes.txt", "x")`)
	run(t, e, `DELETE_FILE("notes.txt")`)
	if _, ok := store.objects["notes.txt"]; ok {
		t.Fatal("expected notes.txt to be deleted")
	}
}

func TestCopyDuplicatesContentWithoutRemovingSource(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	run(t, e, `WRITE("a.txt", "content")`)
	run(t, e, `COPY("a.txt", "b.txt")`)
	if string(store.objects["a.txt"]) != "content" || string(store.objects["b.txt"]) != "content" {
		t.Fatalf("expected both copies to hold content, got %v", store.objects)
	}
}

func TestMoveRemovesSourceAfterCopying(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	run(t, e, `WRITE("a.txt", "content")`)
	run(t, e, `MOVE("a.txt", "b.txt")`)
	if _, ok := store.objects["a.txt"]; ok {
		t.Fatal("expected source removed after move")
	}
	if string(store.objects["b.txt"]) != "content" {
		t.Fatalf("expected destination to hold content, got %v", store.objects)
	}
}

func TestWriteRejectsPathEscape(t *testing.T) {
	e, _ := newFilesEngine(t, nil)
	p, err := e.Compile(`WRITE("../escape.txt", "x")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected path-escape rejection")
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	e, _ := newFilesEngine(t, nil)
	run(t, e, `WRITE(".gbkb/doc1.txt", "x")`)
	run(t, e, `WRITE(".gbot/config.csv", "y")`)
	got := run(t, e, `LIST(".gbkb")`)
	list, ok := got.([]any)
	if !ok || len(list) != 1 || list[0] != ".gbkb/doc1.txt" {
		t.Fatalf("expected one .gbkb entry, got %v", got)
	}
}

func TestCompressThenExtractRoundTrips(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	run(t, e, `WRITE("a.txt", "alpha")`)
	run(t, e, `WRITE("b.txt", "beta")`)
	run(t, e, `COMPRESS(LIST(), "bundle.zip")`)
	if _, ok := store.objects["bundle.zip"]; !ok {
		t.Fatal("expected archive written")
	}
	extracted := run(t, e, `EXTRACT("bundle.zip", "out")`)
	names, ok := extracted.([]any)
	if !ok || len(names) != 2 {
		t.Fatalf("expected two extracted entries, got %v", extracted)
	}
	if string(store.objects["out/a.txt"]) != "alpha" || string(store.objects["out/b.txt"]) != "beta" {
		t.Fatalf("expected extracted contents preserved, got %v", store.objects)
	}
}

func TestDownloadFetchesURLIntoDriveNamespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote content"))
	}))
	defer srv.Close()

	e, store := newFilesEngine(t, srv.Client())
	run(t, e, `DOWNLOAD("`+srv.URL+`", "fetched.txt")`)
	if string(store.objects["fetched.txt"]) != "remote content" {
		t.Fatalf("expected downloaded content stored, got %v", store.objects)
	}
}

func TestGeneratePDFWritesPDFObjectAndReturnsEnvelope(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	got := run(t, e, `GENERATE_PDF("Hello {{.Name}}", {"Name": "Ana"}, "out/invoice.pdf")`)
	envelope, ok := got.(map[string]any)
	if !ok || envelope["localName"] != "invoice.pdf" {
		t.Fatalf("expected envelope with localName, got %v", got)
	}
	data, ok := store.objects["out/invoice.pdf"]
	if !ok || len(data) == 0 {
		t.Fatal("expected PDF bytes written")
	}
	if string(data[:5]) != "%PDF-" {
		t.Fatalf("expected PDF header, got %q", data[:5])
	}
}

func TestMergePDFRejectsNonPDFSourceWithoutWritingOutput(t *testing.T) {
	e, store := newFilesEngine(t, nil)
	run(t, e, `WRITE("a.pdf", "not actually a pdf")`)

	p, err := e.Compile(`MERGE_PDF(["a.pdf"], "merged.pdf")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := e.Eval(p); err == nil {
		t.Fatal("expected an error merging a non-PDF source")
	}
	if _, ok := store.objects["merged.pdf"]; ok {
		t.Fatal("expected no output written when a source fails to parse")
	}
}
