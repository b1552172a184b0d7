package main

import (
	"sort"
	"time"
)

// startGame moves a room into play. Host-only; needs at least two players
// and a non-empty catalog. Every connected socket in the room gets its own
// spectrum drawn from a fresh permutation of the catalog, so a player on
// two devices receives two independent assignments.
func (reg *Registry) startGame(c *client, code, playerName string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return errNotFound
	}
	if playerName != room.host {
		return errForbidden
	}
	if len(room.players) < 2 {
		return errInsufficientPlayers
	}
	if reg.catalog.Len() == 0 {
		return errNoClues
	}

	clues := reg.catalog.Deal(len(room.clients))

	i := 0
	for member := range room.clients {
		room.sendLocked(member, gameStartedMessage{Type: "game-started", Clue: clues[i]})
		i++
	}

	room.status = statusInProgress

	logf(reg.cfg, "GAMES: Started game in %s with %d players", room.code, len(room.players))

	return nil
}

// submitClue records the player's hidden target and clue text, acknowledges
// the submitter, and tells the rest of the room that someone finished.
// Once every player on the roster has submitted, the whole room gets an
// all-submitted signal; advancing past it still takes a host action.
func (reg *Registry) submitClue(c *client, msg clientMessage) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(msg.Code)]
	if !ok {
		return errNotFound
	}
	if !room.hasPlayerLocked(msg.PlayerName) {
		return nil
	}

	var angle float64
	if msg.Angle != nil {
		angle = *msg.Angle
	}

	room.submissions[msg.PlayerName] = Submission{
		Angle:       angle,
		ClueText:    msg.Clue,
		Left:        msg.Left,
		Right:       msg.Right,
		SubmittedAt: time.Now(),
	}

	room.sendLocked(c, simpleMessage{Type: "clue-submitted"})
	room.broadcastOthersLocked(c, playerSubmittedMessage{
		Type:           "player-submitted",
		PlayerName:     msg.PlayerName,
		SubmittedCount: len(room.submissions),
		TotalPlayers:   len(room.players),
	})

	if len(room.submissions) >= len(room.players) {
		room.broadcastLocked(simpleMessage{Type: "all-submitted"})
	}

	return nil
}

// startRound freezes the rotation order from the current roster and begins
// the first presentation with the first player who has a submission.
func (reg *Registry) startRound(c *client, code, playerName string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return errNotFound
	}
	if playerName != room.host {
		return errForbidden
	}

	order := make([]string, len(room.players))
	copy(order, room.players)

	start := -1
	for i, name := range order {
		if _, ok := room.submissions[name]; ok {
			start = i
			break
		}
	}
	if start == -1 {
		return errNothingToPresent
	}

	room.round = &Round{
		order:     order,
		index:     start,
		presenter: order[start],
		ready:     make(map[string]bool),
		guesses:   make(map[string]float64),
	}

	reg.beginPresentationLocked(room)

	return nil
}

// beginPresentationLocked announces the current presenter and schedules the
// delayed clue broadcast. Caller holds the registry lock.
func (reg *Registry) beginPresentationLocked(room *Room) {
	room.broadcastLocked(showClueGiverMessage{
		Type:      "show-clue-giver",
		Presenter: room.round.presenter,
	})

	logf(reg.cfg, "GAMES: Presenting %q in %s", room.round.presenter, room.code)

	go reg.presentAfterDelay(room.code)
}

// presentAfterDelay waits out the intro pause, then re-reads current room
// state before emitting anything: the room may have been deleted, the round
// torn down, or the presenter rotated while we slept. Whatever is current
// at fire time is what gets presented.
func (reg *Registry) presentAfterDelay(code string) {
	time.Sleep(reg.cfg.introDelay)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok || room.round == nil {
		return
	}

	sub, ok := room.submissions[room.round.presenter]
	if !ok {
		return
	}

	// A fast lobby can complete the readiness tally while the intro pause
	// is still running. That reveal already happened and already scored;
	// never re-arm the same presentation.
	if !room.round.revealing {
		room.round.ready = make(map[string]bool)
		room.round.guesses = make(map[string]float64)
		room.round.lastScores = nil
	}

	room.broadcastLocked(presentClueMessage{
		Type:      "present-clue",
		Presenter: room.round.presenter,
		Angle:     sub.Angle,
		ClueText:  sub.ClueText,
		Left:      sub.Left,
		Right:     sub.Right,
	})
}

// readyTallyLocked counts readiness over the current roster, excluding the
// presenter. Counting members rather than roster length minus one keeps the
// tally correct if the presenter has left mid-round.
func (room *Room) readyTallyLocked() (readyCount, totalOthers int) {
	for _, name := range room.players {
		if name == room.round.presenter {
			continue
		}
		totalOthers++
		if room.round.ready[name] {
			readyCount++
		}
	}

	return readyCount, totalOthers
}

// playerReady records a non-presenter's readiness flag and optional guess,
// then broadcasts the updated tally. When every other player is ready the
// reveal sequence triggers, exactly once per presentation.
func (reg *Registry) playerReady(c *client, msg clientMessage) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(msg.Code)]
	if !ok || room.round == nil {
		return
	}

	round := room.round
	if msg.PlayerName == round.presenter || !room.hasPlayerLocked(msg.PlayerName) {
		return
	}

	ready := msg.Ready != nil && *msg.Ready
	round.ready[msg.PlayerName] = ready
	if msg.GuessAngle != nil {
		round.guesses[msg.PlayerName] = *msg.GuessAngle
	}

	readyCount, totalOthers := room.readyTallyLocked()

	room.broadcastLocked(readyUpdatedMessage{
		Type:        "ready-updated",
		PlayerName:  msg.PlayerName,
		Ready:       ready,
		ReadyCount:  readyCount,
		TotalOthers: totalOthers,
	})

	if round.revealing || totalOthers <= 0 || readyCount < totalOthers {
		return
	}

	reg.triggerRevealLocked(room)
}

// triggerRevealLocked scores every guesser against the presenter's target,
// folds the results into the room's running totals, and schedules the
// delayed target broadcast. Caller holds the registry lock.
func (reg *Registry) triggerRevealLocked(room *Room) {
	round := room.round

	sub, ok := room.submissions[round.presenter]
	if !ok {
		return
	}

	round.revealing = true
	room.broadcastLocked(simpleMessage{Type: "reveal-start"})

	round.lastScores = make(map[string]scoreEntry, len(room.players)-1)
	for _, name := range room.players {
		if name == round.presenter {
			continue
		}

		entry := scoreEntry{}
		if guess, ok := round.guesses[name]; ok {
			g := guess
			entry.Guess = &g
			entry.Points = scoreGuess(sub.Angle, guess)
		}

		room.scores[name] += entry.Points
		round.lastScores[name] = entry
	}

	logf(reg.cfg, "GAMES: Revealing %q's target in %s", round.presenter, room.code)

	go reg.revealAfterDelay(room.code)
}

// revealAfterDelay waits out the reveal pause, then re-validates the room
// and round before broadcasting the target. Scores were already folded into
// the room totals when the reveal triggered.
func (reg *Registry) revealAfterDelay(code string) {
	time.Sleep(reg.cfg.revealDelay)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok || room.round == nil || room.round.lastScores == nil {
		return
	}

	round := room.round
	sub, ok := room.submissions[round.presenter]
	if !ok {
		return
	}

	room.broadcastLocked(revealTargetMessage{
		Type:        "reveal-target",
		Code:        room.code,
		Presenter:   round.presenter,
		Angle:       sub.Angle,
		ClueText:    sub.ClueText,
		Left:        sub.Left,
		Right:       sub.Right,
		Scores:      round.lastScores,
		IsLastCycle: round.index == len(round.order)-1,
	})
}

// nextRound rotates to the next presenter with a stored submission,
// wrapping around the order. Host-only. Presenters without submissions are
// skipped so the room can never strand on an empty presentation; if nobody
// has one left, the host is told so.
func (reg *Registry) nextRound(c *client, code, playerName string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return errNotFound
	}
	if playerName != room.host {
		return errForbidden
	}

	round := room.round
	if round == nil {
		return nil
	}

	next := -1
	for step := 1; step <= len(round.order); step++ {
		i := (round.index + step) % len(round.order)
		if _, ok := room.submissions[round.order[i]]; ok {
			next = i
			break
		}
	}
	if next == -1 {
		return errNothingToPresent
	}

	round.index = next
	round.presenter = round.order[next]
	round.ready = make(map[string]bool)
	round.guesses = make(map[string]float64)
	round.revealing = false
	round.lastScores = nil

	reg.beginPresentationLocked(room)

	return nil
}

// endGame broadcasts the leaderboard. The room survives: scores stay put
// and players drop back to the lobby, free to start another game.
func (reg *Registry) endGame(c *client, code, playerName string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[normalizeCode(code)]
	if !ok {
		return errNotFound
	}
	if playerName != room.host {
		return errForbidden
	}

	entries := make([]leaderboardEntry, 0, len(room.players))
	for _, name := range room.players {
		entries = append(entries, leaderboardEntry{Name: name, Points: room.scores[name]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})

	logf(reg.cfg, "GAMES: Ended game in %s", room.code)

	room.broadcastLocked(gameEndedMessage{
		Type:        "game-ended",
		Code:        room.code,
		Leaderboard: entries,
	})

	return nil
}

// newSpectrum hands out a fresh random spectrum. With a live room code the
// update goes to the whole room; otherwise only the requester sees it, so
// the dial works even before a room exists.
func (reg *Registry) newSpectrum(c *client, code string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.catalog.Len() == 0 {
		return errNoClues
	}

	msg := clueUpdatedMessage{Type: "clue-updated", Clue: reg.catalog.Random()}

	if room, ok := reg.rooms[normalizeCode(code)]; ok {
		room.broadcastLocked(msg)
		return nil
	}

	c.trySend(msg)
	return nil
}
