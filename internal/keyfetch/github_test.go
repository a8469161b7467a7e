package keyfetch

import (
	"context"
	"testing"

	"github.com/dedpaste/dedpaste/internal/appconfig"
)

func TestGithubKeyURLFormat(t *testing.T) {
	got := githubKeyURL("octocat")
	want := "https://github.com/octocat.gpg"
	if got != want {
		t.Errorf("githubKeyURL = %q, want %q", got, want)
	}
}

func TestFetchGithubServesFromCacheWithoutNetwork(t *testing.T) {
	ctx := &appconfig.Context{
		ExportTimeout: appconfig.DefaultExportTimeout,
	}
	client, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	client.githubCache.Add("octocat", []byte("cached-armored-key"))

	result, err := client.FetchGithub(context.Background(), "octocat", false)
	if err != nil {
		t.Fatalf("FetchGithub: %v", err)
	}
	if string(result.Armored) != "cached-armored-key" {
		t.Errorf("Armored = %q, want the cached value", result.Armored)
	}
	if result.Origin != githubKeyURL("octocat") {
		t.Errorf("Origin = %q, want %q", result.Origin, githubKeyURL("octocat"))
	}
}
