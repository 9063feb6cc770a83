// Package config loads environment-tagged configuration structs, caching
// each type for the process lifetime so that every component sees the same
// values. An optional .env file is honored for local development.
package config
