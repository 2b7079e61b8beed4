// Package config loads and validates the pipeline configuration document.
//
// Configuration comes from a YAML file, optionally overridden by ETLKIT_*
// environment variables. The document describes the data source, the
// transform flags, and the report layout (title, output directory, chart
// specs). It is read once at pipeline construction and immutable afterwards.
package config
