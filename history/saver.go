package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"persona-handler/logging"
)

// Saver errors
var (
	errWriteFailed     = errors.New("failed to write file")
	errReadFailed      = errors.New("failed to read file")
	errMarshalFailed   = errors.New("failed to marshal file")
	errUnmarshalFailed = errors.New("failed to unmarshal file")
)

// Saver writes finalized histories on every tick.
// Before exit it makes one last try to save the changes.
func (s *Store) Saver(
	ctx context.Context,
	path string,
	interval time.Duration,
	logger *logging.Logger,
) {
	const errMsg = "failed to save history"

	t := time.NewTicker(interval)
	defer t.Stop()

	defer logger.Info("saver shut down gracefully")
	defer func() {
		if err := s.Save(path); err != nil {
			logger.Error(errMsg, logging.Err(err))
		}
	}()

	for {
		select {
		case <-t.C:
			if err := s.Save(path); err != nil {
				logger.Error(errMsg, logging.Err(err))
				continue
			}
			logger.Debug("history written", logging.Path(path))
		case <-ctx.Done():
			logger.Info("saver received shutdown signal")
			return
		}
	}
}

// Save writes finalized view of every chat.
// Pending messages are never persisted.
func (s *Store) Save(path string) error {
	protoRoot, err := s.toProto()
	if err != nil {
		return fmt.Errorf("%w: %v", errMarshalFailed, err)
	}

	data, err := proto.Marshal(protoRoot)
	if err != nil {
		return fmt.Errorf("%w: %v", errMarshalFailed, err)
	}

	// Write via temp file and rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", errWriteFailed, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", errWriteFailed, err)
	}

	return nil
}

// Load reads store from path.
// Missing file yields empty store.
func Load(path string, capacity int) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewStore(capacity), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errReadFailed, err)
	}

	var protoRoot structpb.Struct
	if err := proto.Unmarshal(data, &protoRoot); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnmarshalFailed, err)
	}

	return fromProto(&protoRoot, capacity)
}
