//go:build debug

package domain

const debugAssertions = true
