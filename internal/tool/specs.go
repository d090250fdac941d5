package tool

// Canonical tool names. The routing prompt, the HTTP catalogue and the MCP
// surface all use these; renaming one is a breaking change for stored
// transcripts.
const (
	NameStructuredQuery = "structured_data_query"
	NameProductSearch   = "product_details_search"
	NameFeedbackSearch  = "customer_feedback_search"
)

// Default specs for the three built-in tools. The descriptions are what the
// routing model sees, so they state the competence domain and when to pick
// the tool, not how it works.
var (
	StructuredQuerySpec = Spec{
		Name: NameStructuredQuery,
		Description: "Use this tool for factual questions answerable from the store's " +
			"relational database: artists, albums, tracks, customers, employees, " +
			"invoices, sales figures and other structured records. Input should be " +
			"a precise question about the data.",
	}

	ProductSearchSpec = Spec{
		Name: NameProductSearch,
		Description: "Use this tool to find technical specifications, features, or " +
			"details about the product from its official documentation. This " +
			"includes information on capabilities, configuration, performance and " +
			"included accessories. Input should be a specific topic to look up.",
	}

	FeedbackSearchSpec = Spec{
		Name: NameFeedbackSearch,
		Description: "Use this tool to search for customer feedback, opinions, " +
			"complaints, or sentiments about the product, its features, or the " +
			"service experience. Input should be a specific topic to search for.",
	}
)
