package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestFingerprintKnownContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	sum, err := Fingerprint(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if sum != helloDigest {
		t.Fatalf("unexpected digest: %s", sum)
	}
	line := Line(sum, server.URL)
	if line != helloDigest+":"+server.URL {
		t.Fatalf("unexpected output line: %s", line)
	}
}

func TestFingerprintEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sum, err := Fingerprint(context.Background(), server.Client(), server.URL)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if sum != emptyDigest {
		t.Fatalf("unexpected digest for empty body: %s", sum)
	}
}

func TestFingerprintSameContentDifferentReferences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("identical payload"))
	}))
	defer server.Close()

	first, err := Fingerprint(context.Background(), server.Client(), server.URL+"/a")
	if err != nil {
		t.Fatalf("first fingerprint failed: %v", err)
	}
	second, err := Fingerprint(context.Background(), server.Client(), server.URL+"/b")
	if err != nil {
		t.Fatalf("second fingerprint failed: %v", err)
	}
	if first != second {
		t.Fatalf("identical content must yield identical digest: %s vs %s", first, second)
	}
}

func TestFingerprintDistinctContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	first, err := Fingerprint(context.Background(), server.Client(), server.URL+"/one")
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	second, err := Fingerprint(context.Background(), server.Client(), server.URL+"/two")
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if first == second {
		t.Fatalf("distinct content produced identical digest")
	}
}

func TestFingerprintNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	if _, err := Fingerprint(context.Background(), server.Client(), server.URL); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestFingerprintUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := Fingerprint(context.Background(), nil, url); err == nil {
		t.Fatalf("expected error for refused connection")
	}
}

func TestSum(t *testing.T) {
	sum, err := Sum(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if sum != helloDigest {
		t.Fatalf("unexpected digest: %s", sum)
	}
}
