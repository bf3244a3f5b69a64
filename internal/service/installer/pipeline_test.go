package installer

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brasco123/kdg-kiosk-installer/internal/config"
	"github.com/brasco123/kdg-kiosk-installer/internal/github"
)

// recorder captures every callback the pipeline emits, in order.
type recorder struct {
	stages   []Stage
	details  []string
	percents []int
	statuses []string
}

func (r *recorder) OnStage(stage Stage) {
	r.stages = append(r.stages, stage)
}

func (r *recorder) OnDetail(message string) {
	r.details = append(r.details, message)
}

func (r *recorder) OnDownloadProgress(percent int, _, _ int64) {
	r.percents = append(r.percents, percent)
}

func (r *recorder) OnInstallStatus(line string) {
	r.statuses = append(r.statuses, line)
}

// testEnv bundles the fakes one pipeline test needs.
type testEnv struct {
	service     *Service
	recorder    *recorder
	workDirs    int
	cleanups    int
	apiRequests int
}

// passingPrechecks makes every local precheck succeed.
func passingPrechecks() []Option {
	return []Option{
		WithCompatibilityCheck(func() []string { return nil }),
		WithPrivilegeCheck(func() bool { return true }),
		WithBusyCheck(func() ([]string, error) { return nil, nil }),
	}
}

// newTestEnv wires a pipeline service to an httptest release host serving
// one release with one .deb asset, and to fake package manager tools.
func newTestEnv(t *testing.T, tag string, assetSize int, aptScript string, extra ...Option) *testEnv {
	t.Helper()

	env := &testEnv{recorder: &recorder{}}

	assetBody := make([]byte, assetSize)
	_, err := rand.Read(assetBody)
	require.NoError(t, err)

	mux := http.NewServeMux()

	var ts *httptest.Server

	mux.HandleFunc("/repos/someone/kiosk-fork/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		env.apiRequests++

		_, _ = fmt.Fprintf(w, `{
			"tag_name": %q,
			"name": "Kiosk release",
			"body": "notes",
			"assets": [{"name": "kdg-kiosk_1.0.0_amd64.deb", "browser_download_url": %q}]
		}`, tag, ts.URL+"/download/kdg-kiosk_1.0.0_amd64.deb")
	})

	mux.HandleFunc("/download/kdg-kiosk_1.0.0_amd64.deb", func(w http.ResponseWriter, _ *http.Request) {
		// The asset is larger than the response buffer, so the length must be
		// announced explicitly or the server falls back to chunked encoding.
		w.Header().Set("Content-Length", strconv.Itoa(len(assetBody)))
		_, _ = w.Write(assetBody)
	})

	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	apt := writeFakeTool(t, dir, "apt", aptScript)
	dpkg := writeFakeTool(t, dir, "dpkg", "exit 0")

	cfg := config.Default()
	cfg.Repository = "someone/kiosk-fork"

	opts := append(passingPrechecks(),
		WithResolver(github.NewResolver(github.WithBaseURL(ts.URL))),
		WithDebInstaller(&DebInstaller{Apt: apt, Dpkg: dpkg}),
		WithWorkDirHooks(
			func() (string, error) {
				env.workDirs++
				return os.MkdirTemp("", workDirPattern)
			},
			func(path string) error {
				env.cleanups++
				return os.RemoveAll(path)
			},
		),
	)
	opts = append(opts, extra...)

	env.service = New(cfg, opts...)

	return env
}

// TestRun_EndToEndSuccess installs the latest release through the primary tier.
func TestRun_EndToEndSuccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "v1.0.0", 256*1024, `echo "Setting up kdg-kiosk"
exit 0`)

	outcome, err := env.service.Run(context.Background(), "", env.recorder)
	require.NoError(t, err)
	require.True(t, outcome.Succeeded)
	require.Equal(t, "1.0.0", outcome.Version)
	require.Contains(t, outcome.Log, "Setting up kdg-kiosk")

	// Stages arrive strictly in pipeline order.
	require.Equal(t, []Stage{
		StageCheckingCompatibility,
		StageCheckingPrivilege,
		StageResolvingRelease,
		StageSelectingAsset,
		StageDownloading,
		StageInstalling,
		StageSucceeded,
	}, env.recorder.stages)

	// Progress is monotonic and finishes at 100.
	require.NotEmpty(t, env.recorder.percents)
	for i := 1; i < len(env.recorder.percents); i++ {
		require.GreaterOrEqual(t, env.recorder.percents[i], env.recorder.percents[i-1])
	}
	require.Equal(t, 100, env.recorder.percents[len(env.recorder.percents)-1])

	// Exactly one work directory, released exactly once.
	require.Equal(t, 1, env.workDirs)
	require.Equal(t, 1, env.cleanups)
}

// TestRun_ExplicitVersionOverridesLatest keeps the requested version for asset naming.
func TestRun_ExplicitVersionOverridesLatest(t *testing.T) {
	t.Parallel()

	// The published asset is 1.0.0; requesting it explicitly must work even
	// though the tag says v2.0.0.
	env := newTestEnv(t, "v2.0.0", 4*1024, "exit 0")

	outcome, err := env.service.Run(context.Background(), "1.0.0", env.recorder)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", outcome.Version)
}

// TestRun_NoReleasePublished halts at resolution and never creates a work directory.
func TestRun_NoReleasePublished(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	t.Cleanup(ts.Close)

	workDirs := 0
	cleanups := 0

	opts := append(passingPrechecks(),
		WithResolver(github.NewResolver(github.WithBaseURL(ts.URL))),
		WithWorkDirHooks(
			func() (string, error) {
				workDirs++
				return os.MkdirTemp("", workDirPattern)
			},
			func(path string) error {
				cleanups++
				return os.RemoveAll(path)
			},
		),
	)

	service := New(config.Default(), opts...)

	outcome, err := service.Run(context.Background(), "", nil)
	require.ErrorIs(t, err, github.ErrReleaseNotFound)
	require.False(t, outcome.Succeeded)
	require.Equal(t, FailureReleaseNotFound, outcome.Failure)
	require.Zero(t, workDirs)
	require.Zero(t, cleanups)
}

// TestRun_IncompatibleHost fails before any network access.
func TestRun_IncompatibleHost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "v1.0.0", 4*1024, "exit 0",
		WithCompatibilityCheck(func() []string {
			return []string{"This installer only works on Linux systems."}
		}))

	outcome, err := env.service.Run(context.Background(), "", env.recorder)
	require.ErrorIs(t, err, ErrIncompatibleSystem)
	require.Equal(t, FailureIncompatible, outcome.Failure)
	require.Zero(t, env.apiRequests)
	require.Zero(t, env.workDirs)
}

// TestRun_PrivilegeRequired fails before any network access with a re-run hint.
func TestRun_PrivilegeRequired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "v1.0.0", 4*1024, "exit 0",
		WithPrivilegeCheck(func() bool { return false }))

	outcome, err := env.service.Run(context.Background(), "", env.recorder)
	require.ErrorIs(t, err, ErrPrivilegeRequired)
	require.Equal(t, FailurePrivilege, outcome.Failure)
	require.Contains(t, err.Error(), "sudo")
	require.Zero(t, env.apiRequests)
}

// TestRun_PackageManagerBusy refuses to race a running apt.
func TestRun_PackageManagerBusy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "v1.0.0", 4*1024, "exit 0",
		WithBusyCheck(func() ([]string, error) {
			return []string{"unattended-upgr"}, nil
		}))

	outcome, err := env.service.Run(context.Background(), "", env.recorder)
	require.ErrorIs(t, err, ErrPackageManagerBusy)
	require.Equal(t, FailureIncompatible, outcome.Failure)
	require.Contains(t, err.Error(), "unattended-upgr")
	require.Zero(t, env.apiRequests)
}

// TestRun_AssetNotFound reports a versioned failure without creating a work directory.
func TestRun_AssetNotFound(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v3.0.0","name":"r","assets":[{"name":"notes.txt","browser_download_url":"x"}]}`))
	}))
	t.Cleanup(ts.Close)

	workDirs := 0

	opts := append(passingPrechecks(),
		WithResolver(github.NewResolver(github.WithBaseURL(ts.URL))),
		WithWorkDirHooks(func() (string, error) {
			workDirs++
			return "", nil
		}, nil),
	)

	service := New(config.Default(), opts...)

	outcome, err := service.Run(context.Background(), "", nil)
	require.ErrorIs(t, err, github.ErrAssetNotFound)
	require.Equal(t, FailureAssetNotFound, outcome.Failure)
	require.Equal(t, "3.0.0", outcome.Version)
	require.Zero(t, workDirs)
}

// TestRun_DownloadFailed still releases the work directory exactly once.
func TestRun_DownloadFailed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	var ts *httptest.Server

	mux.HandleFunc("/repos/someone/kiosk-fork/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w,
			`{"tag_name":"v1.0.0","name":"r","assets":[{"name":"kdg-kiosk_1.0.0_amd64.deb","browser_download_url":%q}]}`,
			ts.URL+"/gone.deb")
	})
	mux.HandleFunc("/gone.deb", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cleanups := 0

	cfg := config.Default()
	cfg.Repository = "someone/kiosk-fork"

	opts := append(passingPrechecks(),
		WithResolver(github.NewResolver(github.WithBaseURL(ts.URL))),
		WithWorkDirHooks(nil, func(path string) error {
			cleanups++
			return os.RemoveAll(path)
		}),
	)

	service := New(cfg, opts...)

	outcome, err := service.Run(context.Background(), "", nil)
	require.Error(t, err)
	require.Equal(t, FailureDownload, outcome.Failure)
	require.Equal(t, 1, cleanups)
}

// TestRun_InstallFailed carries the captured tool output in the outcome.
func TestRun_InstallFailed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "v1.0.0", 4*1024, `echo "E: Sub-process returned an error code" >&2
exit 1`)

	// The fallback dpkg stub succeeds but the apt fix-up fails again, so the
	// whole install fails.
	outcome, err := env.service.Run(context.Background(), "", env.recorder)
	require.Error(t, err)
	require.Equal(t, FailureInstall, outcome.Failure)
	require.NotEmpty(t, outcome.Log)
	require.Contains(t, outcome.Log, "E: Sub-process returned an error code")
	require.Equal(t, 1, env.cleanups)
}
