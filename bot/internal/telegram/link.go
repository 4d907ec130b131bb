package telegram

import (
	"net/url"
	"strings"
)

// BuildStartAppLink renders the direct Mini App link that opens the app with
// projectKey as start_param.
func BuildStartAppLink(botUsername, miniAppShortName, projectKey string) string {
	username := strings.TrimLeft(strings.TrimSpace(botUsername), "@")
	shortName := strings.Trim(strings.TrimSpace(miniAppShortName), "/")

	return "https://t.me/" + username + "/" + shortName + "?startapp=" + url.QueryEscape(projectKey)
}
