package parse

// Selectors is the complete set of CSS queries run against catalog markup.
var Selectors = struct {
	CategoryBookLink string // Detail link in the second row of each per-book table
	LastPageLink     string // Last pagination anchor on a category page
	TextLink         string // Plain-text download anchor on a detail page
	Heading          string // "Title :: Author"
	Cover            string // Cover image, relative or absolute src
	Genres           string // Genre block, its anchors are the genres
	CommentBlock     string // One block per reader comment
	CommentText      string // Comment text inside a CommentBlock
}{
	CategoryBookLink: "body div#content .d_book tr:nth-of-type(2) a",
	LastPageLink:     "body div#content p.center a:last-child",
	TextLink:         "body div#content .d_book a[title$='скачать книгу txt']",
	Heading:          "body div#content h1",
	Cover:            "body .bookimage img",
	Genres:           "body div#content span.d_book",
	CommentBlock:     "body div#content .texts",
	CommentText:      ".black",
}

// HeadingSeparator splits a detail page heading into title and author.
const HeadingSeparator = "::"
