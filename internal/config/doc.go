// Package config defines the immutable configuration model for a build: the
// path registry for every output role, the stylesheet options and the dev
// server options, along with the Loader interface that format-specific
// loaders implement.
//
// A Model is built once at startup and handed to every component. Nothing in
// the application mutates it afterwards.
package config
