package sqlxrepos

import (
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo/core"
)

// orderBy renders ORDER BY; fields must already be whitelisted. exprs maps fields to sort expressions.
func orderBy(ordering []core.DBOrdering, exprs map[string]string) string {
	if len(ordering) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if expr, ok := exprs[ord.Field]; ok {
			ord.Field = expr
		}
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// isUUID avoids sending ids postgres would reject as malformed.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
