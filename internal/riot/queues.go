package riot

// QueueInfo describes a matchmaking queue
type QueueInfo struct {
	Map         string
	Description string
}

var queues = map[int]QueueInfo{
	0:    {"Custom games", "Custom Game"},
	400:  {"Summoner's Rift", "5v5 Draft Pick"},
	420:  {"Summoner's Rift", "5v5 Ranked Solo/Duo"},
	430:  {"Summoner's Rift", "5v5 Blind Pick"},
	440:  {"Summoner's Rift", "5v5 Ranked Flex"},
	450:  {"Howling Abyss", "5v5 ARAM"},
	490:  {"Summoner's Rift", "Quickplay"},
	700:  {"Summoner's Rift", "Clash"},
	720:  {"Howling Abyss", "ARAM Clash"},
	830:  {"Summoner's Rift", "Co-op vs. AI Intro Bots"},
	840:  {"Summoner's Rift", "Co-op vs. AI Beginner Bots"},
	850:  {"Summoner's Rift", "Co-op vs. AI Intermediate Bots"},
	900:  {"Summoner's Rift", "ARURF"},
	1020: {"Summoner's Rift", "One for All"},
	1300: {"Nexus Blitz", "Nexus Blitz"},
	1400: {"Summoner's Rift", "Ultimate Spellbook"},
	1700: {"Rings of Wrath", "Arena"},
	1900: {"Summoner's Rift", "Pick URF"},
}

// LookupQueue returns map and description for a queue id
func LookupQueue(queueID int) QueueInfo {
	if q, ok := queues[queueID]; ok {
		return q
	}
	return QueueInfo{Map: "Unknown map", Description: "Custom Game"}
}
