package game_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"PopBattle/core/game"
	"PopBattle/model"

	. "github.com/smartystreets/goconvey/convey"
)

type testEnv struct {
	now  time.Time
	rng  *rand.Rand
	next int
}

func newTestEnv() *testEnv {
	return &testEnv{
		now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
		rng: rand.New(rand.NewSource(1)),
	}
}

func (e *testEnv) env() game.Env {
	return game.Env{
		Now:  e.now,
		Rand: e.rng,
		NewID: func() string {
			e.next++
			return fmt.Sprintf("p%d", e.next)
		},
	}
}

// tick advances the clock so joinedAt values stay ordered.
func (e *testEnv) tick() { e.now = e.now.Add(time.Second) }

func mustApply(room *model.Room, action game.Action, actor string, p game.Payload, env game.Env) game.Result {
	res, err := game.Apply(room, action, actor, p, env)
	So(err, ShouldBeNil)
	return res
}

func assertPermutations(r *model.Room) {
	ids := model.TrackIDs(r.Tracks)
	So(r.CorrectOrder, ShouldHaveLength, len(ids))
	for _, id := range ids {
		So(r.CorrectOrder, ShouldContain, id)
	}
	for _, p := range r.Players {
		So(p.Order, ShouldHaveLength, len(ids))
		for _, id := range ids {
			So(p.Order, ShouldContain, id)
		}
	}
}

func newTestRoom(e *testEnv) *model.Room {
	pool := makePool(10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120)
	room, err := game.NewRoom("ABC234", "alice", model.PlaylistInfo{ID: "pl1", Name: "Hits"}, pool, e.env())
	So(err, ShouldBeNil)
	return room
}

func TestNewRoom(t *testing.T) {
	Convey("Given a host and a pool of twelve tracks", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)

		Convey("Then the room waits with the host as first player", func() {
			So(room.Status, ShouldEqual, model.RoomStatusWaiting)
			So(room.Players, ShouldHaveLength, 1)
			So(room.Players[0].ID, ShouldEqual, room.HostID)
			So(room.Players[0].Name, ShouldEqual, "alice")
			So(room.Players[0].Order, ShouldResemble, model.TrackIDs(room.Tracks))
			So(room.Tracks, ShouldHaveLength, 10)
			So(room.AllTracks, ShouldHaveLength, 12)
			So(room.StartedAt, ShouldBeNil)
			assertPermutations(room)
		})
	})

	Convey("Given a pool that is too small", t, func() {
		e := newTestEnv()
		_, err := game.NewRoom("ABC234", "alice", model.PlaylistInfo{ID: "pl1"}, makePool(1, 2, 3), e.env())

		Convey("Then creation fails with a validation error", func() {
			So(errors.Is(err, game.ErrValidationFailed), ShouldBeTrue)
		})
	})

	Convey("Given an empty host name", t, func() {
		e := newTestEnv()
		_, err := game.NewRoom("ABC234", "  ", model.PlaylistInfo{ID: "pl1"}, makePool(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), e.env())

		Convey("Then creation fails with a validation error", func() {
			So(errors.Is(err, game.ErrValidationFailed), ShouldBeTrue)
		})
	})
}

func TestJoin(t *testing.T) {
	Convey("Given a waiting room", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		e.tick()

		Convey("When a new player joins", func() {
			res := mustApply(room, game.ActionJoin, "", game.Payload{PlayerName: "bob"}, e.env())

			Convey("Then the player is appended with the initial order", func() {
				So(res.PlayerID, ShouldNotBeEmpty)
				So(res.Room.Players, ShouldHaveLength, 2)
				bob := res.Room.Player(res.PlayerID)
				So(bob.Name, ShouldEqual, "bob")
				So(bob.Order, ShouldResemble, model.TrackIDs(room.Tracks))
				So(bob.JoinedAt, ShouldBeGreaterThan, room.Players[0].JoinedAt)
			})

			Convey("And the input room is untouched", func() {
				So(room.Players, ShouldHaveLength, 1)
			})
		})

		Convey("When a player joins with a taken name", func() {
			_, err := game.Apply(room, game.ActionJoin, "", game.Payload{PlayerName: "alice"}, e.env())

			Convey("Then it fails with a conflict", func() {
				So(errors.Is(err, game.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When names differ only by case", func() {
			_, err := game.Apply(room, game.ActionJoin, "", game.Payload{PlayerName: "Alice"}, e.env())

			Convey("Then the join is accepted", func() {
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given a room that is not waiting", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		for _, status := range []model.RoomStatus{model.RoomStatusPlaying, model.RoomStatusResults} {
			room.Status = status
			for _, name := range []string{"bob", "alice", ""} {
				_, err := game.Apply(room, game.ActionJoin, "", game.Payload{PlayerName: name}, e.env())
				So(errors.Is(err, game.ErrInvalidState), ShouldBeTrue)
			}
		}
	})
}

func TestRoundFlow(t *testing.T) {
	Convey("Given a room with two players", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		hostID := room.HostID
		e.tick()
		res := mustApply(room, game.ActionJoin, "", game.Payload{PlayerName: "bob"}, e.env())
		bobID := res.PlayerID
		room = res.Room

		Convey("When a non-host starts", func() {
			_, err := game.Apply(room, game.ActionStart, bobID, game.Payload{}, e.env())

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, game.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When validating before the game starts", func() {
			_, err := game.Apply(room, game.ActionValidate, hostID, game.Payload{}, e.env())

			Convey("Then it is an invalid state", func() {
				So(errors.Is(err, game.ErrInvalidState), ShouldBeTrue)
			})
		})

		Convey("When the host starts", func() {
			room = mustApply(room, game.ActionStart, hostID, game.Payload{}, e.env()).Room

			Convey("Then the round runs for sixty seconds", func() {
				So(room.Status, ShouldEqual, model.RoomStatusPlaying)
				So(*room.StartedAt, ShouldEqual, e.now.UnixMilli())
				So(*room.EndsAt-*room.StartedAt, ShouldEqual, int64(60000))
			})

			Convey("And starting again is an invalid state", func() {
				_, err := game.Apply(room, game.ActionStart, hostID, game.Payload{}, e.env())
				So(errors.Is(err, game.ErrInvalidState), ShouldBeTrue)
			})

			Convey("And both players submit the correct order and validate", func() {
				correct := room.CorrectOrder
				room = mustApply(room, game.ActionUpdateOrder, hostID, game.Payload{Order: correct}, e.env()).Room
				room = mustApply(room, game.ActionUpdateOrder, bobID, game.Payload{Order: correct}, e.env()).Room

				first := mustApply(room, game.ActionValidate, hostID, game.Payload{}, e.env())
				So(first.Room.Status, ShouldEqual, model.RoomStatusPlaying)
				So(first.Finished, ShouldBeFalse)

				last := mustApply(first.Room, game.ActionValidate, bobID, game.Payload{}, e.env())

				Convey("Then both score ten and the room shows results", func() {
					So(last.Finished, ShouldBeTrue)
					So(last.Room.Status, ShouldEqual, model.RoomStatusResults)
					for _, p := range last.Room.Players {
						So(p.Score, ShouldEqual, 10)
						So(p.Validated, ShouldBeTrue)
					}
					assertPermutations(last.Room)
				})
			})

			Convey("And a player validates twice", func() {
				room = mustApply(room, game.ActionValidate, bobID, game.Payload{}, e.env()).Room
				_, err := game.Apply(room, game.ActionValidate, bobID, game.Payload{}, e.env())

				Convey("Then the second validation conflicts", func() {
					So(errors.Is(err, game.ErrConflict), ShouldBeTrue)
				})

				Convey("Then updating the order afterwards conflicts", func() {
					_, err := game.Apply(room, game.ActionUpdateOrder, bobID, game.Payload{Order: room.CorrectOrder}, e.env())
					So(errors.Is(err, game.ErrConflict), ShouldBeTrue)
				})
			})

			Convey("And an unknown player updates an order", func() {
				_, err := game.Apply(room, game.ActionUpdateOrder, "ghost", game.Payload{Order: room.CorrectOrder}, e.env())
				So(errors.Is(err, game.ErrNotFound), ShouldBeTrue)
			})

			Convey("And an order that is not a permutation is submitted", func() {
				bad := append([]string(nil), room.CorrectOrder...)
				bad[0] = bad[1]
				_, err := game.Apply(room, game.ActionUpdateOrder, bobID, game.Payload{Order: bad}, e.env())
				So(errors.Is(err, game.ErrValidationFailed), ShouldBeTrue)
			})

			Convey("And the round is forced to end", func() {
				reversed := make([]string, len(room.CorrectOrder))
				for i, id := range room.CorrectOrder {
					reversed[len(reversed)-1-i] = id
				}
				room = mustApply(room, game.ActionUpdateOrder, bobID, game.Payload{Order: reversed}, e.env()).Room
				room = mustApply(room, game.ActionValidate, hostID, game.Payload{}, e.env()).Room
				hostScore := room.Player(hostID).Score

				first := mustApply(room, game.ActionForceEnd, "", game.Payload{}, e.env())

				Convey("Then unvalidated players are scored and results show", func() {
					So(first.Changed, ShouldBeTrue)
					So(first.Finished, ShouldBeTrue)
					So(first.Room.Status, ShouldEqual, model.RoomStatusResults)
					So(first.Room.Player(bobID).Validated, ShouldBeTrue)
					So(first.Room.Player(bobID).Score, ShouldEqual, game.Score(reversed, room.CorrectOrder))
					So(first.Room.Player(hostID).Score, ShouldEqual, hostScore)
				})

				Convey("Then a second force end is a no-op", func() {
					second := mustApply(first.Room, game.ActionForceEnd, "", game.Payload{}, e.env())
					So(second.Changed, ShouldBeFalse)
					So(second.Finished, ShouldBeFalse)
					So(second.Room, ShouldResemble, first.Room)
				})
			})
		})

		Convey("When a non-host restarts", func() {
			_, err := game.Apply(room, game.ActionRestart, bobID, game.Payload{}, e.env())
			So(errors.Is(err, game.ErrForbidden), ShouldBeTrue)
		})

		Convey("When the host restarts after a finished round", func() {
			room = mustApply(room, game.ActionStart, hostID, game.Payload{}, e.env()).Room
			room = mustApply(room, game.ActionUpdateOrder, hostID, game.Payload{Order: room.CorrectOrder}, e.env()).Room
			room = mustApply(room, game.ActionForceEnd, "", game.Payload{}, e.env()).Room
			So(room.Player(hostID).Score, ShouldEqual, 10)

			restarted := mustApply(room, game.ActionRestart, hostID, game.Payload{}, e.env()).Room

			Convey("Then a new round waits with everything reset", func() {
				So(restarted.Status, ShouldEqual, model.RoomStatusWaiting)
				So(restarted.StartedAt, ShouldBeNil)
				So(restarted.EndsAt, ShouldBeNil)
				So(restarted.HostID, ShouldEqual, hostID)
				So(restarted.Players, ShouldHaveLength, 2)
				initial := model.TrackIDs(restarted.Tracks)
				for _, p := range restarted.Players {
					So(p.Order, ShouldResemble, initial)
					So(p.Score, ShouldEqual, 0)
					So(p.Validated, ShouldBeFalse)
				}
				assertPermutations(restarted)
			})
		})
	})
}

func TestLeave(t *testing.T) {
	Convey("Given a room with host A and player B", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		hostID := room.HostID
		e.tick()
		res := mustApply(room, game.ActionJoin, "", game.Payload{PlayerName: "bob"}, e.env())
		bobID := res.PlayerID
		room = res.Room

		Convey("When A leaves", func() {
			out := mustApply(room, game.ActionLeave, hostID, game.Payload{}, e.env())

			Convey("Then B becomes host and is the only player", func() {
				So(out.Deleted, ShouldBeFalse)
				So(out.Room.HostID, ShouldEqual, bobID)
				So(out.Room.Players, ShouldHaveLength, 1)
				So(out.Room.Players[0].ID, ShouldEqual, bobID)
			})
		})

		Convey("When a departed player leaves again", func() {
			out := mustApply(room, game.ActionLeave, bobID, game.Payload{}, e.env())
			_, err := game.Apply(out.Room, game.ActionLeave, bobID, game.Payload{}, e.env())

			Convey("Then it is reported as not found", func() {
				So(errors.Is(err, game.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When both leave", func() {
			out := mustApply(room, game.ActionLeave, bobID, game.Payload{}, e.env())
			out = mustApply(out.Room, game.ActionLeave, hostID, game.Payload{}, e.env())

			Convey("Then the room is deleted", func() {
				So(out.Deleted, ShouldBeTrue)
				So(out.Room.Players, ShouldBeEmpty)
			})
		})

		Convey("When the only unvalidated player leaves mid-round", func() {
			room = mustApply(room, game.ActionStart, hostID, game.Payload{}, e.env()).Room
			room = mustApply(room, game.ActionValidate, hostID, game.Payload{}, e.env()).Room
			out := mustApply(room, game.ActionLeave, bobID, game.Payload{}, e.env())

			Convey("Then the room advances to results", func() {
				So(out.Room.Status, ShouldEqual, model.RoomStatusResults)
				So(out.Finished, ShouldBeTrue)
			})
		})
	})

	Convey("Given a host with several players who joined out of list order", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		hostID := room.HostID
		room.Players = append(room.Players,
			model.Player{ID: "late", Name: "late", JoinedAt: room.Players[0].JoinedAt + 3000},
			model.Player{ID: "early", Name: "early", JoinedAt: room.Players[0].JoinedAt + 1000},
			model.Player{ID: "tie", Name: "tie", JoinedAt: room.Players[0].JoinedAt + 1000},
		)

		out := mustApply(room, game.ActionLeave, hostID, game.Payload{}, e.env())

		Convey("Then the most senior remaining player becomes host, ties by list order", func() {
			So(out.Room.HostID, ShouldEqual, "early")
			So(out.Room.Players, ShouldHaveLength, 3)
		})
	})
}

func TestUnknownAction(t *testing.T) {
	Convey("An unknown action is rejected", t, func() {
		e := newTestEnv()
		room := newTestRoom(e)
		_, err := game.Apply(room, game.Action("dance"), room.HostID, game.Payload{}, e.env())
		So(errors.Is(err, game.ErrValidationFailed), ShouldBeTrue)
	})
}
