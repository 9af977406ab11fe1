// Package main provides a demo program classifying images with a model saved
// by train_transfer.
package main
