package db

import "errors"

var (
	ErrRecordNotFound = errors.New("no record found")
	ErrURLEmpty       = errors.New("URL cannot be empty")
	ErrDomainEmpty    = errors.New("domain cannot be empty")
)
