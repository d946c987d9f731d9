//go:build !whisper_cpp

package whisper

import "errors"

// Without the whisper_cpp tag there is no backend to load, so construction
// fails and the holder reports the model as absent. The HTTP surface still
// serves /health and shaped 503s.
func NewEngine(modelPath string, threads int) (Engine, error) {
	return nil, errors.New("whisperd built without whisper_cpp support")
}
