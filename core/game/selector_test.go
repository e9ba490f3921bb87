package game_test

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"PopBattle/core/game"
	"PopBattle/model"

	. "github.com/smartystreets/goconvey/convey"
)

func makePool(pops ...int) []model.Track {
	pool := make([]model.Track, len(pops))
	for i, p := range pops {
		pool[i] = model.Track{ID: fmt.Sprintf("t%02d", i), Name: fmt.Sprintf("Track %d", i), Popularity: p}
	}
	return pool
}

func popularityOf(pool []model.Track) map[string]int {
	m := make(map[string]int, len(pool))
	for _, t := range pool {
		m[t.ID] = t.Popularity
	}
	return m
}

func TestSelectRound(t *testing.T) {
	Convey("Given a pool with exactly ten distinct popularity values among twelve tracks", t, func() {
		// 10..100 plus two duplicates (30 and 70)
		pool := makePool(10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 30, 70)
		rng := rand.New(rand.NewSource(42))

		tracks, correct, err := game.SelectRound(pool, rng)

		Convey("Then one track per distinct popularity is selected", func() {
			So(err, ShouldBeNil)
			So(tracks, ShouldHaveLength, game.RoundSize)
			seen := map[int]bool{}
			for _, tr := range tracks {
				So(seen[tr.Popularity], ShouldBeFalse)
				seen[tr.Popularity] = true
			}
			So(seen, ShouldHaveLength, 10)
		})

		Convey("And the correct order is the ids sorted by popularity descending", func() {
			pops := popularityOf(pool)
			So(correct, ShouldHaveLength, game.RoundSize)
			So(sort.SliceIsSorted(correct, func(i, j int) bool {
				return pops[correct[i]] > pops[correct[j]]
			}), ShouldBeTrue)
			So(pops[correct[0]], ShouldEqual, 100)
			So(pops[correct[9]], ShouldEqual, 10)
		})

		Convey("And the correct order is a permutation of the selected ids", func() {
			So(correct, ShouldHaveLength, len(tracks))
			for _, id := range model.TrackIDs(tracks) {
				So(correct, ShouldContain, id)
			}
		})
	})

	Convey("Given a pool with fewer than ten distinct popularity values", t, func() {
		pool := makePool(50, 50, 50, 40, 40, 40, 30, 30, 30, 20, 20, 20)
		rng := rand.New(rand.NewSource(7))

		tracks, correct, err := game.SelectRound(pool, rng)

		Convey("Then the round is filled from the remainder without duplicates", func() {
			So(err, ShouldBeNil)
			So(tracks, ShouldHaveLength, game.RoundSize)
			ids := map[string]bool{}
			for _, tr := range tracks {
				So(ids[tr.ID], ShouldBeFalse)
				ids[tr.ID] = true
			}
			So(correct, ShouldHaveLength, game.RoundSize)
		})
	})

	Convey("Given a pool with fewer than ten tracks", t, func() {
		pool := makePool(1, 2, 3, 4, 5, 6, 7, 8, 9)

		_, _, err := game.SelectRound(pool, rand.New(rand.NewSource(1)))

		Convey("Then selection fails with a validation error", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, game.ErrValidationFailed), ShouldBeTrue)
		})
	})

	Convey("Given the same seed twice", t, func() {
		pool := makePool(5, 15, 25, 35, 45, 55, 65, 75, 85, 95, 15, 25, 99, 1)

		a, _, _ := game.SelectRound(pool, rand.New(rand.NewSource(99)))
		b, _, _ := game.SelectRound(pool, rand.New(rand.NewSource(99)))

		Convey("Then the selections are identical", func() {
			So(model.TrackIDs(a), ShouldResemble, model.TrackIDs(b))
		})
	})
}

func TestCorrectOrderTies(t *testing.T) {
	Convey("Given tracks with equal popularity", t, func() {
		tracks := []model.Track{
			{ID: "a", Popularity: 10},
			{ID: "b", Popularity: 30},
			{ID: "c", Popularity: 10},
			{ID: "d", Popularity: 30},
		}

		Convey("Then ties keep their input order", func() {
			So(game.CorrectOrder(tracks), ShouldResemble, []string{"b", "d", "a", "c"})
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Score counts exact position matches", t, func() {
		correct := []string{"a", "b", "c", "d"}
		So(game.Score([]string{"a", "b", "c", "d"}, correct), ShouldEqual, 4)
		So(game.Score([]string{"b", "a", "c", "d"}, correct), ShouldEqual, 2)
		So(game.Score([]string{"d", "c", "b", "a"}, correct), ShouldEqual, 0)
		So(game.Score(nil, correct), ShouldEqual, 0)
	})
}
