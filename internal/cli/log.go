package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"go.streamcat.tech/core/chain"
	"go.streamcat.tech/core/internal/config"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/wallet"
)

// log is the logger of the CLI itself.
var log = btclog.Disabled

// subsystemLoggers maps each subsystem identifier to the function that
// installs its logger.
var subsystemLoggers = map[string]func(btclog.Logger){
	"STRM": stream.UseLogger,
	"CHAN": chain.UseLogger,
	"LDGR": ledger.UseLogger,
	"WLLT": wallet.UseLogger,
	"CLI":  func(l btclog.Logger) { log = l },
}

// logWriter writes to the console and, if set, the log rotator.
type logWriter struct {
	console io.Writer
	rotator io.Writer
}

func (w logWriter) Write(p []byte) (int, error) {
	w.console.Write(p)
	if w.rotator != nil {
		w.rotator.Write(p)
	}
	return len(p), nil
}

// initLogging creates a logger for each subsystem, writing to console and, if
// cfg.Dir is set, to a rotated log file in that directory. The returned
// function closes the log file.
func initLogging(console io.Writer, cfg config.Log) (func(), error) {
	level, ok := btclog.LevelFromString(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	w := logWriter{console: console}
	closeFn := func() {}
	if cfg.Dir != "" {
		dir, err := config.ExpandPath(cfg.Dir)
		if err != nil {
			return nil, err
		} else if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		r, err := rotator.New(filepath.Join(dir, "streaming.log"), 10*1024, false, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %w", err)
		}
		pr, pw := io.Pipe()
		done := make(chan struct{})
		go func() {
			r.Run(pr)
			close(done)
		}()
		w.rotator = pw
		closeFn = func() {
			pw.Close()
			<-done
			r.Close()
		}
	}

	backend := btclog.NewBackend(w)
	for id, use := range subsystemLoggers {
		l := backend.Logger(id)
		l.SetLevel(level)
		use(l)
	}
	return closeFn, nil
}
