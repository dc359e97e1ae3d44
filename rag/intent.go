package rag

import "strings"

// listCues mark questions that want every member of some set. Refinement
// is skipped for these because sentence extraction risks dropping members.
var listCues = []string{
	"list",
	"all ",
	"who are",
	"members",
	"name the",
	"how many",
}

// pluralRoleNouns catch "who are the wardens" style questions where no
// explicit list keyword appears.
var pluralRoleNouns = []string{
	"teachers", "professors", "faculties", "faculty members", "lecturers",
	"students", "staff", "departments", "courses", "branches", "hods",
	"heads", "deans", "principals", "wardens", "coordinators", "committees",
	"clubs", "facilities", "labs", "hostels",
}

// isExhaustiveListQuestion reports whether a lowercased question asks for
// an exhaustive enumeration.
func isExhaustiveListQuestion(q string) bool {
	for _, cue := range listCues {
		if strings.Contains(q, cue) {
			return true
		}
	}
	for _, noun := range pluralRoleNouns {
		if strings.Contains(q, noun) {
			return true
		}
	}
	return false
}

// roleTitles are position titles whose holders change often enough that a
// live lookup beats the index. Ordered longest-match-first.
var roleTitles = []string{
	"head of department",
	"head of the department",
	"vice principal",
	"vice chancellor",
	"hod",
	"principal",
	"director",
	"dean",
	"chairman",
	"chairperson",
	"registrar",
	"warden",
	"coordinator",
}

// detectRoleQuestion reports whether a lowercased question asks who holds a
// position, and returns the matched role phrase.
func detectRoleQuestion(q string) (role string, ok bool) {
	if !strings.Contains(q, "who") && !strings.Contains(q, "name of") {
		return "", false
	}
	for _, title := range roleTitles {
		if strings.Contains(q, title) {
			return title, true
		}
	}
	return "", false
}
