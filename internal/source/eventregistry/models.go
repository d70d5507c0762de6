package eventregistry

import "strings"

// request is the getArticles POST body. EventRegistry takes the whole
// query, including the API key, as JSON.
type request struct {
	Action         string  `json:"action"`
	Query          query   `json:"query"`
	Filter         *filter `json:"$filter,omitempty"`
	ResultType     string  `json:"resultType"`
	ArticlesSortBy string  `json:"articlesSortBy"`
	ArticlesPage   int     `json:"articlesPage"`
	ArticlesCount  int     `json:"articlesCount"`
	APIKey         string  `json:"apiKey"`
}

type filter struct {
	DataType []string `json:"dataType"`
}

type query struct {
	Query queryBody `json:"$query"`
}

type queryBody struct {
	And []condition `json:"$and"`
}

// condition is one clause of the $and: a keyword, a source, a date
// range, a language filter, or an $or over other conditions.
type condition struct {
	Keyword    string      `json:"keyword,omitempty"`
	KeywordLoc string      `json:"keywordLoc,omitempty"`
	SourceURI  string      `json:"sourceUri,omitempty"`
	DateStart  string      `json:"dateStart,omitempty"`
	DateEnd    string      `json:"dateEnd,omitempty"`
	Or         []condition `json:"$or,omitempty"`
	Lang       string      `json:"lang,omitempty"`
}

func keywordCondition(kw string) condition {
	return condition{Keyword: kw, KeywordLoc: "body"}
}

// buildConditions translates the project's query strings into
// EventRegistry conditions. Each string is one AND clause; within a
// string, "OR" separates alternative keywords and "AND" further
// conjuncts. Operators must be uppercase.
//
//	"climate policy"            -> keyword
//	"solar OR wind"             -> $or of two keywords
//	"energy AND (grid OR ...)"  -> parentheses are not interpreted,
//	                               only flat AND/OR splitting
func buildConditions(queries []string) []condition {
	var conds []condition
	for _, q := range queries {
		for _, andPart := range splitOnOperator(q, "AND") {
			orParts := splitOnOperator(andPart, "OR")
			if len(orParts) == 1 {
				if orParts[0] != "" {
					conds = append(conds, keywordCondition(orParts[0]))
				}
				continue
			}
			or := make([]condition, 0, len(orParts))
			for _, kw := range orParts {
				or = append(or, keywordCondition(kw))
			}
			conds = append(conds, condition{Or: or})
		}
	}
	return conds
}

func splitOnOperator(s, op string) []string {
	var out []string
	for _, part := range strings.Split(" "+s+" ", " "+op+" ") {
		part = strings.Trim(part, " ()")
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if out == nil {
		return []string{""}
	}
	return out
}

type response struct {
	Articles articlePage `json:"articles"`
	Error    string      `json:"error"`
}

type articlePage struct {
	Results      []articleResult `json:"results"`
	TotalResults int             `json:"totalResults"`
	Page         int             `json:"page"`
	Pages        int             `json:"pages"`
}

type articleResult struct {
	URI      string        `json:"uri"`
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Body     string        `json:"body"`
	DateTime string        `json:"dateTime"`
	Source   articleSource `json:"source"`
}

type articleSource struct {
	Title string `json:"title"`
}
