/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Game errors are recoverable and user-facing. They are reported only to the
// acting connection as a room-error payload, never broadcast.
var (
	errAlreadyExists       = errors.New("Room already exists!")
	errNotFound            = errors.New("Room not found!")
	errNameTaken           = errors.New("Player name already taken!")
	errBadCode             = errors.New("Room code must be 6 characters!")
	errForbidden           = errors.New("Only the host can do that!")
	errInsufficientPlayers = errors.New("Need at least 2 players to start!")
	errNoClues             = errors.New("No spectrums are loaded!")
	errNothingToPresent    = errors.New("Nobody has submitted a clue yet!")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
