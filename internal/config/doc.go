// Package config loads sbustui settings from TOML.
//
// Resolution order: an explicit --config path, then
// ~/.config/sbustui/config.toml, then ./sbustui.toml. Missing files are not
// an error; defaults apply.
package config
