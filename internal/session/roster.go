package session

// Rank values derived from local knowledge. There is no live presence
// protocol behind the roster; ranks come from the operator set, the global
// admin flag, and the well-known bot identity.
const (
	RankAdmin    = "admin"
	RankOperator = "operator"
	RankBot      = "bot"
	RankMember   = "member"
)

// RosterEntry is one roster row for the active conversation.
type RosterEntry struct {
	Nickname string `json:"nickname"`
	Rank     string `json:"rank"`
}

// Roster returns the derived member set for a conversation: the operator set
// augmented with the signed-in user for channels, or the two participants for
// a private chat.
func (s *Session) Roster(conversation string) []RosterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, channel := range s.channels {
		if channel.Name != conversation {
			continue
		}

		entries := make([]RosterEntry, 0, len(channel.Operators)+1)
		seen := make(map[string]struct{})
		for _, operator := range channel.Operators {
			entries = append(entries, RosterEntry{Nickname: operator, Rank: s.rankOf(operator, channel.Operators)})
			seen[operator] = struct{}{}
		}
		if _, ok := seen[s.nickname]; !ok {
			entries = append(entries, RosterEntry{Nickname: s.nickname, Rank: s.rankOf(s.nickname, channel.Operators)})
		}
		return entries
	}

	for _, peer := range s.privates {
		if peer != conversation {
			continue
		}
		return []RosterEntry{
			{Nickname: s.nickname, Rank: s.rankOf(s.nickname, nil)},
			{Nickname: peer, Rank: s.rankOf(peer, nil)},
		}
	}

	return nil
}

func (s *Session) rankOf(nickname string, operators []string) string {
	if nickname == s.botNickname {
		return RankBot
	}
	if nickname == s.nickname && s.admin {
		return RankAdmin
	}
	for _, operator := range operators {
		if operator == nickname {
			return RankOperator
		}
	}
	return RankMember
}
