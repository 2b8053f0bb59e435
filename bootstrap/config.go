package bootstrap

// Config is the immutable runtime configuration assembled once at startup
// and read-only thereafter.
type Config struct {
	// EmitFullDiagnostics logs every compile request flowing through the
	// detour, for diagnosing injection behavior.
	EmitFullDiagnostics bool

	// StrictMode disables all injection: the hook still installs, but every
	// compile call passes through untouched.
	StrictMode bool

	// ModDir is the directory module sources are expected under. Empty when
	// directory discovery failed or was skipped; injection itself does not
	// read it.
	ModDir string
}
