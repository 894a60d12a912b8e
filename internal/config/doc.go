// Package config defines the format-agnostic pipeline definition model.
//
// Loaders for concrete formats (HCL, YAML) translate their documents into a
// *Definition. Everything downstream (graph building, parameter resolution,
// scheduling) only ever sees this model, never the source syntax.
package config
