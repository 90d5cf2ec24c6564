package sim

import "github.com/inference-sim/pagesim/sim/trace"

//go:generate go run go.uber.org/mock/mockgen -destination "mock_recorder_test.go" -package $GOPACKAGE -write_package_comment=false github.com/inference-sim/pagesim/sim Recorder

// Recorder persists exchange records outside the process.
// sim/record provides the SQLite implementation.
type Recorder interface {
	Record(rec trace.ExchangeRecord) error
	Close() error
}
