package auth

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	Convey("Given an issuer with a secret", t, func() {
		issuer := NewTokenIssuer("s3cret", time.Hour).WithClock(clock)
		So(issuer.Enabled(), ShouldBeTrue)

		token, err := issuer.Issue("ABC234", "p1")
		So(err, ShouldBeNil)
		So(token, ShouldNotBeEmpty)

		Convey("The token verifies for the same room and player", func() {
			So(issuer.Verify(token, "ABC234", "p1"), ShouldBeNil)
		})

		Convey("The token is rejected for another player", func() {
			So(errors.Is(issuer.Verify(token, "ABC234", "p2"), ErrInvalidToken), ShouldBeTrue)
		})

		Convey("The token is rejected for another room", func() {
			So(errors.Is(issuer.Verify(token, "XYZ789", "p1"), ErrInvalidToken), ShouldBeTrue)
		})

		Convey("The token is rejected once expired", func() {
			later := NewTokenIssuer("s3cret", time.Hour).WithClock(func() time.Time { return now.Add(2 * time.Hour) })
			So(errors.Is(later.Verify(token, "ABC234", "p1"), ErrInvalidToken), ShouldBeTrue)
		})

		Convey("A token signed with another secret is rejected", func() {
			other := NewTokenIssuer("other", time.Hour).WithClock(clock)
			So(errors.Is(other.Verify(token, "ABC234", "p1"), ErrInvalidToken), ShouldBeTrue)
		})

		Convey("An empty token is reported as missing", func() {
			So(issuer.Verify("", "ABC234", "p1"), ShouldEqual, ErrMissingToken)
		})
	})

	Convey("An issuer without a secret is disabled", t, func() {
		So(NewTokenIssuer("", time.Hour).Enabled(), ShouldBeFalse)
		var nilIssuer *TokenIssuer
		So(nilIssuer.Enabled(), ShouldBeFalse)
	})
}

func TestBearerToken(t *testing.T) {
	Convey("BearerToken extracts the token from the header", t, func() {
		So(BearerToken("Bearer abc.def"), ShouldEqual, "abc.def")
		So(BearerToken("bearer abc"), ShouldEqual, "abc")
		So(BearerToken("Basic abc"), ShouldEqual, "")
		So(BearerToken(""), ShouldEqual, "")
	})
}
