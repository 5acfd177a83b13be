package open

import (
	"testing"

	"github.com/lectern-cli/lectern/constant"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCommand(t *testing.T) {
	Convey("Each supported OS has a handler", t, func() {
		const url = "https://iframe.mediadelivery.net/embed/1/v?token=t&expires=1"

		for goos, bin := range map[string]string{
			constant.Darwin:  "open",
			constant.Linux:   "xdg-open",
			constant.Android: "termux-open",
		} {
			cmd, ok := command(goos, url)
			So(ok, ShouldBeTrue)
			So(cmd.Args, ShouldResemble, []string{bin, url})
		}

		cmd, ok := command(constant.Windows, url)
		So(ok, ShouldBeTrue)
		So(cmd.Args[len(cmd.Args)-1], ShouldEqual, url)

		_, ok = command("plan9", url)
		So(ok, ShouldBeFalse)
	})
}
