package version

import (
	"strings"
	"testing"
)

// stashVars snapshots the build-time variables and returns a restore func.
func stashVars() func() {
	v, c, b, bt, gv := Version, GitCommit, GitBranch, BuildTime, GoVersion
	return func() {
		Version, GitCommit, GitBranch, BuildTime, GoVersion = v, c, b, bt, gv
	}
}

func setVars(version, commit, branch, buildTime, goVersion string) {
	Version = version
	GitCommit = commit
	GitBranch = branch
	BuildTime = buildTime
	GoVersion = goVersion
}

func TestGetVersionInfoDevDefaults(t *testing.T) {
	defer stashVars()()
	setVars("dev", "", "", "", "")

	info := GetVersionInfo()
	if info == nil {
		t.Fatal("expected non-nil Info")
	}
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.IsRelease {
		t.Error("dev build must not be flagged as a release")
	}
	if info.BuildDate.IsZero() {
		t.Error("BuildDate should be populated even without ldflags")
	}
}

func TestGetVersionInfoRelease(t *testing.T) {
	defer stashVars()()
	setVars("0.4.2", "9f2c1e0", "main", "2026-03-01T08:00:00Z", "go1.24.0")

	info := GetVersionInfo()
	if info.Version != "0.4.2" {
		t.Errorf("Version = %q, want 0.4.2", info.Version)
	}
	if !info.IsRelease {
		t.Error("tagged version should be a release")
	}
	if info.GitCommit != "9f2c1e0" {
		t.Errorf("GitCommit = %q, want 9f2c1e0", info.GitCommit)
	}
	if info.GoVersion != "go1.24.0" {
		t.Errorf("GoVersion = %q, want go1.24.0", info.GoVersion)
	}
	if info.BuildDate.Year() != 2026 {
		t.Errorf("BuildDate year = %d, want 2026", info.BuildDate.Year())
	}
}

func TestGetVersionInfoDirtyIsNotRelease(t *testing.T) {
	defer stashVars()()
	setVars("0.4.2-dirty", "", "", "", "")

	if GetVersionInfo().IsRelease {
		t.Error("dirty version must not be a release")
	}
}

func TestGetShortVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"with commit", "0.4.2", "9f2c1e0", "0.4.2-9f2c1e0"},
		{"dev no commit", "dev", "", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer stashVars()()
			setVars(tt.version, tt.commit, "", "2026-03-01T08:00:00Z", "go1.24.0")

			sv := GetShortVersion()
			if !strings.Contains(sv, tt.want) {
				t.Errorf("GetShortVersion() = %q, want it to contain %q", sv, tt.want)
			}
		})
	}
}

func TestGetFullVersionOmitsMainBranch(t *testing.T) {
	defer stashVars()()
	setVars("0.4.2", "9f2c1e0", "main", "2026-03-01T08:00:00Z", "go1.24.0")

	fv := GetFullVersion()
	if !strings.Contains(fv, "0.4.2") || !strings.Contains(fv, "9f2c1e0") {
		t.Errorf("full version missing version or commit: %q", fv)
	}
	if strings.Contains(fv, "main") {
		t.Errorf("main branch must not appear in full version: %q", fv)
	}
	if !strings.Contains(fv, "built") {
		t.Errorf("full version should include build timestamp: %q", fv)
	}
}

func TestGetFullVersionIncludesFeatureBranch(t *testing.T) {
	defer stashVars()()
	setVars("0.4.2", "9f2c1e0", "feature/prefetch-tuning", "2026-03-01T08:00:00Z", "go1.24.0")

	fv := GetFullVersion()
	if !strings.Contains(fv, "feature/prefetch-tuning") {
		t.Errorf("expected feature branch in full version: %q", fv)
	}
}

func TestGetFullVersionBareDev(t *testing.T) {
	defer stashVars()()
	setVars("dev", "", "", "", "")

	fv := GetFullVersion()
	if !strings.HasPrefix(fv, "dev") {
		t.Errorf("GetFullVersion() = %q, want prefix dev", fv)
	}
}
