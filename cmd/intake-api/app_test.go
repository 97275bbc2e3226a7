package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/RequestBox/internal/api/intake_api"
	"github.com/BearBump/RequestBox/internal/services/intake"
	"github.com/BearBump/RequestBox/internal/storage/filetracking"
	"github.com/stretchr/testify/require"
)

func startApp(t *testing.T, opts intakeAPIOpts) string {
	t.Helper()

	st := filetracking.New(t.TempDir(), "")
	svc := intake.New(st, nil, intake.Options{})
	api := intake_api.New(svc, nil, 0)

	opts.httpAddr = "127.0.0.1:0"
	addrCh := make(chan string, 1)
	opts.onListen = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- runIntakeAPI(ctx, opts, api) }()

	select {
	case addr := <-addrCh:
		return addr
	case err := <-errCh:
		t.Fatalf("server did not start: %v", err)
		return ""
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listener")
		return ""
	}
}

func TestRunIntakeAPI_HealthAndSubmitFlow(t *testing.T) {
	addr := startApp(t, intakeAPIOpts{})

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Kouame A."))
	require.NoError(t, w.WriteField("phone", "+2250701020304"))
	require.NoError(t, w.WriteField("inputType", "text"))
	require.NoError(t, w.WriteField("description", "panne"))
	require.NoError(t, w.Close())

	resp, err = http.Post("http://"+addr+"/api/requests", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success      bool   `json:"success"`
		TrackingCode string `json:"trackingCode"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out.Success)
	require.Regexp(t, `^EBF_\d{4}$`, out.TrackingCode)

	trackResp, err := http.Get("http://" + addr + "/api/requests/track?code=" + out.TrackingCode)
	require.NoError(t, err)
	trackResp.Body.Close()
	require.Equal(t, http.StatusOK, trackResp.StatusCode)
}

func TestRunIntakeAPI_SwaggerServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	addr := startApp(t, intakeAPIOpts{swaggerPath: sw})

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"swagger":"2.0"}`, string(body))
}
