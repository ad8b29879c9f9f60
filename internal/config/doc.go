// Package config defines the installation settings shared by the
// coordinator and the panel CLI and provides helpers to load, validate and
// save them in YAML format.
//
// A single Config carries the installation identity used on every remote
// call, the listener addresses, persistence paths and the sensor directory.
package config
