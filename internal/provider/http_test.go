package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"codeberg.org/snonux/bookmaker/internal/credential"
)

func TestDeepLProvider_TranslateBatch(t *testing.T) {
	var gotForm url.Values
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotAuth = r.Header.Get("Authorization")

		var resp struct {
			Translations []map[string]string `json:"translations"`
		}
		for _, text := range gotForm["text"] {
			resp.Translations = append(resp.Translations, map[string]string{"text": "DE:" + text})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := New(Config{Kind: KindDeepL, Keys: "key-1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bp, ok := p.(BatchProvider)
	if !ok {
		t.Fatal("deepl should implement BatchProvider")
	}

	out, err := bp.TranslateBatch(context.Background(), []string{"one", "two", "three"}, "de")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if strings.Join(out, "|") != "DE:one|DE:two|DE:three" {
		t.Errorf("TranslateBatch() = %v", out)
	}
	if gotForm.Get("target_lang") != "DE" {
		t.Errorf("target_lang = %q", gotForm.Get("target_lang"))
	}
	if gotAuth != "DeepL-Auth-Key key-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotForm.Has("tag_handling") {
		t.Errorf("plain text sent with tag_handling=%q", gotForm.Get("tag_handling"))
	}

	if _, err := bp.TranslateBatch(WithMarkup(context.Background()), []string{"<em>one</em>"}, "de"); err != nil {
		t.Fatalf("TranslateBatch() with markup error = %v", err)
	}
	if gotForm.Get("tag_handling") != "html" {
		t.Errorf("tag_handling = %q, want html for markup", gotForm.Get("tag_handling"))
	}
}

func TestDeepLProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		lang    string
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "Too many requests", lang: "de", wantErr: ErrRateLimited},
		{name: "quota", status: 456, body: "Quota exceeded", lang: "de", wantErr: ErrRateLimited},
		{name: "forbidden", status: http.StatusForbidden, body: "Wrong key", lang: "de", wantErr: ErrAuth},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway", lang: "de", wantErr: ErrTransient},
		{name: "language not in table", status: http.StatusOK, lang: "sw", wantErr: ErrUnsupportedLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			p, err := NewDeepLProvider(Config{Keys: "k", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewDeepLProvider() error = %v", err)
			}
			_, err = p.Translate(context.Background(), "hello", tt.lang)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Translate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeepLProvider_Endpoint(t *testing.T) {
	d := &DeepLProvider{}
	if got := d.endpoint("abc:fx"); got != deeplFreeURL {
		t.Errorf("free key endpoint = %q", got)
	}
	if got := d.endpoint("abc"); got != deeplProURL {
		t.Errorf("pro key endpoint = %q", got)
	}
	d.baseURL = "http://localhost:1234"
	if got := d.endpoint("abc:fx"); got != "http://localhost:1234" {
		t.Errorf("override endpoint = %q", got)
	}
}

func TestDeepLProvider_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"translations":[{"text":"only one"}]}`)
	}))
	defer server.Close()

	p, _ := NewDeepLProvider(Config{Keys: "k", BaseURL: server.URL})
	_, err := p.(BatchProvider).TranslateBatch(context.Background(), []string{"a", "b"}, "fr")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("mismatch error = %v, want ErrTransient", err)
	}
}

func TestCaiyunProvider(t *testing.T) {
	var got struct {
		Source    []string `json:"source"`
		TransType string   `json:"trans_type"`
	}
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		out := make([]string, len(got.Source))
		for i, s := range got.Source {
			out[i] = "「译" + s + "」"
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{"target": out})
	}))
	defer server.Close()

	p, err := New(Config{Kind: KindCaiyun, Keys: "tok", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	out, err := p.(BatchProvider).TranslateBatch(context.Background(), []string{"a", "b"}, "zh-hant")
	if err != nil {
		t.Fatalf("TranslateBatch() error = %v", err)
	}
	if strings.Join(out, ",") != "译a,译b" {
		t.Errorf("TranslateBatch() = %v", out)
	}
	if got.TransType != "auto2zh-Hant" {
		t.Errorf("trans_type = %q", got.TransType)
	}
	if gotAuth != "token tok" {
		t.Errorf("X-Authorization = %q", gotAuth)
	}

	if _, err := p.Translate(context.Background(), "a", "de"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("german should be unsupported, got %v", err)
	}
}

// chatServer answers chat completion requests and records the bearer keys
type chatServer struct {
	mu     sync.Mutex
	keys   []string
	models []string
	status int
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.keys = append(s.keys, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	s.models = append(s.models, req.Model)
	status := s.status
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"message":"status %d","type":"error","code":"x"}}`, status)
		return
	}

	fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"m","choices":[`+
		`{"index":0,"message":{"role":"assistant","content":"`+"```\\nHola\\n```"+`"},"finish_reason":"stop"}]}`)
}

func TestChatProvider_Translate(t *testing.T) {
	srv := &chatServer{}
	server := httptest.NewServer(srv)
	defer server.Close()

	p, err := New(Config{
		Kind:    KindGroq,
		Keys:    "k1,k2",
		BaseURL: server.URL + "/v1",
		Models:  []string{"m-a", "m-b"},
		Policy:  credential.RotateEveryCall,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		out, err := p.Translate(context.Background(), "Hello", "es")
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if out != "Hola" {
			t.Errorf("Translate() = %q, want fence stripped", out)
		}
	}

	if strings.Join(srv.keys, ",") != "k1,k2,k1" {
		t.Errorf("keys used = %v", srv.keys)
	}
	if strings.Join(srv.models, ",") != "m-a,m-b,m-a" {
		t.Errorf("models used = %v", srv.models)
	}
}

func TestChatProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusInternalServerError, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(&chatServer{status: tt.status})
			defer server.Close()

			p, err := NewChatProvider(Config{Kind: KindOpenAI, Keys: "k", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewChatProvider() error = %v", err)
			}
			_, err = p.Translate(context.Background(), "Hello", "fr")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Translate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatProvider_RotateKey(t *testing.T) {
	srv := &chatServer{}
	server := httptest.NewServer(srv)
	defer server.Close()

	p, _ := NewChatProvider(Config{Kind: KindOpenAI, Keys: "k1,k2", BaseURL: server.URL})
	_, _ = p.Translate(context.Background(), "a", "fr")
	_, _ = p.Translate(context.Background(), "b", "fr")
	if !p.RotateKey() {
		t.Fatal("RotateKey() should report a new key with two keys")
	}
	_, _ = p.Translate(context.Background(), "c", "fr")

	if strings.Join(srv.keys, ",") != "k1,k1,k2" {
		t.Errorf("keys used = %v", srv.keys)
	}
}

func TestGeminiProvider_Translate(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"  你好  "}]}}]}`)
	}))
	defer server.Close()

	p, err := New(Config{Kind: KindGemini, Keys: "g-1", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.(ModelSelector).SetModels([]string{"gemini-test"})

	out, err := p.Translate(context.Background(), "Hello", "zh-hans")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "你好" {
		t.Errorf("Translate() = %q, want 你好", out)
	}
	if !strings.HasSuffix(gotPath, "models/gemini-test:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "g-1" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestGeminiProvider_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	}))
	defer server.Close()

	p, err := New(Config{Kind: KindGemini, Keys: "bad", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.Translate(context.Background(), "Hello", "ja"); !errors.Is(err, ErrAuth) {
		t.Errorf("Translate() error = %v, want ErrAuth", err)
	}
}

func TestBatchProviders_EmptyElementIsTransient(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		body string
	}{
		{name: "deepl", kind: KindDeepL, body: `{"translations":[{"text":"uno"},{"text":"  "}]}`},
		{name: "caiyun", kind: KindCaiyun, body: `{"target":["一",""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			p, err := New(Config{Kind: tt.kind, Keys: "k", BaseURL: server.URL})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			out, err := p.(BatchProvider).TranslateBatch(context.Background(), []string{"one", "two"}, "ja")
			if !errors.Is(err, ErrTransient) {
				t.Errorf("TranslateBatch() = %v, %v; want ErrTransient", out, err)
			}
		})
	}
}
