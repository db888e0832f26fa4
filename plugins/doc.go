// Package plugins hosts plugin implementation subpackages. Each subpackage
// exposes a core.Plugin that a Service installs with InstallPlugin; this
// package itself holds no runtime code.
package plugins
