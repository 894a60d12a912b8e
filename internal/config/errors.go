package config

import "errors"

// ErrConfiguration classifies every error caused by a malformed definition or
// invalid run inputs. Such errors are always fatal and surface before any node
// runs, except for workspace binding failures which are raised at dispatch.
var ErrConfiguration = errors.New("configuration error")
