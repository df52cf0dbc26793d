// Package library registers media files as gallery assets, either on demand
// or by watching configured directories with fsnotify, and hands each new
// asset to the conversion service.
package library
