// Package bootstrap performs the one-time, process-wide startup of the
// injector: platform directory discovery, configuration assembly, crash
// logging, symbol resolution and hook installation.
//
// Init runs exactly once per process. The gate is an atomic set-once: a
// second attempt reports double_init and leaves the first initialization's
// installed hook intact. There is no teardown; the runtime lives until
// process exit.
package bootstrap
