package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"airdrop/internal/airdrop/wire"
	"airdrop/internal/transfer"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SaveDir:            t.TempDir(),
		ApprovalTimeout:    200 * time.Millisecond,
		LocalComputerName:  "Test-PC",
		LocalModelName:     "Windows-PC",
		PreserveTimestamps: true,
	}
}

// testPeerKey is generated once and reused across tests; nothing here
// depends on a unique key per certificate.
var testPeerKey = mustGenRSAKey()

func mustGenRSAKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

// fakePeerCert attaches a syntactically valid, unexpired leaf certificate
// to req.TLS so peerThumbprint can extract a thumbprint the way a real
// mutual-TLS handshake would populate it.
func fakePeerCert(t *testing.T, req *http.Request) {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "peer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &testPeerKey.PublicKey, testPeerKey)
	if err != nil {
		t.Fatalf("create test cert: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse test cert: %v", err)
	}
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{leaf}}
}

func TestHandleDiscoverIsIdempotent(t *testing.T) {
	s := New(testConfig(t), transfer.NewTable(0), nil, nil, zerolog.Nop())

	body, _ := json.Marshal(wire.DiscoverRequest{SenderComputerName: "Jordan's Mac", SenderID: "abc"})
	req := httptest.NewRequest(http.MethodPost, "/Discover", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp wire.DiscoverResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ReceiverComputerName != "Test-PC" || !resp.ReceiverMediaCapabilities.Files {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleAskAutoAccept(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoAccept = true
	s := New(cfg, transfer.NewTable(0), nil, nil, zerolog.Nop())

	body, _ := json.Marshal(wire.AskRequest{
		SenderID: "peer-1",
		Files:    []wire.AskFile{{FileName: "a.txt", FileSize: 10}},
	})
	req := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(body))
	fakePeerCert(t, req)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleAskRejection(t *testing.T) {
	cfg := testConfig(t)
	reject := func(ctx context.Context, req wire.AskRequest) Decision { return Reject("busy") }
	s := New(cfg, transfer.NewTable(0), reject, nil, zerolog.Nop())

	body, _ := json.Marshal(wire.AskRequest{SenderID: "peer-1"})
	req := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(body))
	fakePeerCert(t, req)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestHandleAskTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.ApprovalTimeout = 20 * time.Millisecond
	blockForever := func(ctx context.Context, req wire.AskRequest) Decision {
		<-ctx.Done()
		return Approve("")
	}
	s := New(cfg, transfer.NewTable(0), blockForever, nil, zerolog.Nop())

	body, _ := json.Marshal(wire.AskRequest{SenderID: "peer-1"})
	req := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(body))
	fakePeerCert(t, req)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestTimeout {
		t.Fatalf("status = %d, want 408", rr.Code)
	}
}

func TestHandleUploadWithoutAskIsRejected(t *testing.T) {
	cfg := testConfig(t)
	s := New(cfg, transfer.NewTable(0), nil, nil, zerolog.Nop())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("f", "a.txt")
	fw.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/Upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	fakePeerCert(t, req)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestHandleUploadAfterApprovalWritesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoAccept = true
	events := make(chan transfer.Event, 16)
	s := New(cfg, transfer.NewTable(0), nil, events, zerolog.Nop())

	// /Ask first to open the correlation window.
	askBody, _ := json.Marshal(wire.AskRequest{
		SenderID: "peer-1",
		Files:    []wire.AskFile{{FileName: "a.txt", FileSize: 5}},
	})
	askReq := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(askBody))
	fakePeerCert(t, askReq)
	askRR := httptest.NewRecorder()
	s.ServeHTTP(askRR, askReq)
	if askRR.Code != http.StatusOK {
		t.Fatalf("/Ask status = %d", askRR.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("f", "a.txt")
	fw.Write([]byte("hello"))
	mw.Close()

	upReq := httptest.NewRequest(http.MethodPost, "/Upload", &buf)
	upReq.Header.Set("Content-Type", mw.FormDataContentType())
	fakePeerCert(t, upReq)
	upRR := httptest.NewRecorder()
	s.ServeHTTP(upRR, upReq)

	if upRR.Code != http.StatusOK {
		t.Fatalf("/Upload status = %d, body=%s", upRR.Code, upRR.Body.String())
	}
	var resp wire.UploadResponse
	if err := json.Unmarshal(upRR.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.FilesReceived != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if data, err := os.ReadFile(filepath.Join(cfg.SaveDir, "a.txt")); err != nil || string(data) != "hello" {
		t.Fatalf("file contents = %q, err = %v", data, err)
	}
}

func TestHandleUploadHonorsApprovalSavePath(t *testing.T) {
	cfg := testConfig(t)
	override := t.TempDir()
	approve := func(ctx context.Context, req wire.AskRequest) Decision { return Approve(override) }
	s := New(cfg, transfer.NewTable(0), approve, nil, zerolog.Nop())

	askBody, _ := json.Marshal(wire.AskRequest{
		SenderID: "peer-1",
		Files:    []wire.AskFile{{FileName: "a.txt", FileSize: 5}},
	})
	askReq := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(askBody))
	fakePeerCert(t, askReq)
	askRR := httptest.NewRecorder()
	s.ServeHTTP(askRR, askReq)
	if askRR.Code != http.StatusOK {
		t.Fatalf("/Ask status = %d", askRR.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("f", "a.txt")
	fw.Write([]byte("hello"))
	mw.Close()

	upReq := httptest.NewRequest(http.MethodPost, "/Upload", &buf)
	upReq.Header.Set("Content-Type", mw.FormDataContentType())
	fakePeerCert(t, upReq)
	upRR := httptest.NewRecorder()
	s.ServeHTTP(upRR, upReq)

	if upRR.Code != http.StatusOK {
		t.Fatalf("/Upload status = %d, body=%s", upRR.Code, upRR.Body.String())
	}
	if _, err := os.Stat(filepath.Join(override, "a.txt")); err != nil {
		t.Fatalf("expected file under the approval's save path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.SaveDir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("file should not land in the default save dir, err = %v", err)
	}
}

func TestHandleUploadDuplicateFilenameResolvesCollision(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoAccept = true
	if err := os.WriteFile(filepath.Join(cfg.SaveDir, "photo.jpg"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(cfg, transfer.NewTable(0), nil, nil, zerolog.Nop())

	askBody, _ := json.Marshal(wire.AskRequest{SenderID: "peer-1"})
	askReq := httptest.NewRequest(http.MethodPost, "/Ask", bytes.NewReader(askBody))
	fakePeerCert(t, askReq)
	askRR := httptest.NewRecorder()
	s.ServeHTTP(askRR, askReq)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("f", "photo.jpg")
	fw.Write(bytes.Repeat([]byte{0xFF}, 4096))
	mw.Close()

	upReq := httptest.NewRequest(http.MethodPost, "/Upload", &buf)
	upReq.Header.Set("Content-Type", mw.FormDataContentType())
	fakePeerCert(t, upReq)
	upRR := httptest.NewRecorder()
	s.ServeHTTP(upRR, upReq)

	if upRR.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", upRR.Code, upRR.Body.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.SaveDir, "photo (1).jpg")); err != nil {
		t.Fatalf("expected collision-renamed file: %v", err)
	}
}
