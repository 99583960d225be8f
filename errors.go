package jxlrender

import "errors"

var (
	ErrIncompleteFrame      = errors.New("jxlrender: incomplete frame")
	ErrUnsupportedEncoding  = errors.New("jxlrender: unsupported frame encoding")
	ErrUnsupportedTransform = errors.New("jxlrender: unsupported transform type")
	ErrNoDisplayableFrame   = errors.New("jxlrender: no displayable frame")
	ErrFrameIndex           = errors.New("jxlrender: frame index out of range")
	ErrMissingLFFrame       = errors.New("jxlrender: referenced LF frame not loaded")
	ErrInvalidPass          = errors.New("jxlrender: inconsistent block across passes")
	ErrAlreadyLoaded        = errors.New("jxlrender: session already loaded")
	ErrNoColorTransform     = errors.New("jxlrender: XYB image requires a color transform")
	ErrTruncatedData        = errors.New("jxlrender: truncated data")
	ErrInvalidBookmark      = errors.New("jxlrender: invalid bookmark")
	ErrNonZeroPadding       = errors.New("jxlrender: non-zero padding bits")
)
