// Package registry maps task references used in pipeline definitions
// (e.g. "git-clone@^1.2") to the compiled Go implementations that serve them.
//
// Built-in modules register their tasks at startup through the Module
// interface. A reference's version is a semantic version constraint; the
// highest registered version satisfying it wins.
package registry
