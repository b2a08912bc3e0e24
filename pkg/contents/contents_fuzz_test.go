package contents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzParseDescriptor(f *testing.F) {
	f.Add("Mail(address from,address to,string message)")
	f.Add("Attachment(bytes blob)Mail(Attachment a)Mail")
	f.Add("Order(Item item)Item(uint256 qty)")
	f.Add("")
	f.Add(")")
	f.Add("Mail")
	f.Add("mail(address from)")

	f.Fuzz(func(t *testing.T, description string) {
		// Keep memory bounded for fuzzing.
		if len(description) > 4096 {
			description = description[:4096]
		}

		d, err := ParseDescriptor(description)
		if err != nil {
			return
		}

		// A successful parse always yields a safe name and parts that
		// reassemble into the original description.
		require.NoError(t, ValidateName(d.Name))
		if d.Explicit {
			require.Equal(t, description, d.Type+d.Name)
			require.True(t, strings.HasSuffix(d.Type, ")"))
		} else {
			require.Equal(t, description, d.Type)
			require.True(t, strings.HasPrefix(d.Type, d.Name+"("))
		}
	})
}
