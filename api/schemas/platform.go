package schemas

// -- LinkedIn Schemas --

type LinkedInAuthRequest struct {
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	LiAtCookie string `json:"li_at_cookie,omitempty"`
}

type LinkedInAuthResponse struct {
	Success     bool   `json:"success"`
	ProfileName string `json:"profile_name,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// LinkedInFetchRequest defaults: MaxPosts 30, IncludeReposts false.
type LinkedInFetchRequest struct {
	SessionID      string   `json:"session_id"`
	MaxPosts       int      `json:"max_posts"`
	Hashtags       []string `json:"hashtags,omitempty"`
	IncludeReposts bool     `json:"include_reposts"`
}

type LinkedInFetchResponse struct {
	Success      bool            `json:"success"`
	Posts        []ContentRecord `json:"posts"`
	FetchedCount int             `json:"fetched_count"`
	Error        string          `json:"error,omitempty"`
}

type LinkedInTestResponse struct {
	Success     bool   `json:"success"`
	ProfileName string `json:"profile_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

// -- Twitter Schemas --

type TwitterAuthRequest struct {
	AuthToken string `json:"auth_token,omitempty"`
	CT0       string `json:"ct0,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
}

type TwitterAuthResponse struct {
	Success   bool   `json:"success"`
	Username  string `json:"username,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TwitterFetchRequest uses pointers for the flags whose default is true so an absent
// field can be told apart from an explicit false.
type TwitterFetchRequest struct {
	SessionID       string   `json:"session_id"`
	TimelineType    string   `json:"timeline_type"`
	MaxTweets       int      `json:"max_tweets"`
	IncludeRetweets *bool    `json:"include_retweets,omitempty"`
	IncludeReplies  bool     `json:"include_replies"`
	ExpandThreads   *bool    `json:"expand_threads,omitempty"`
	Hashtags        []string `json:"hashtags,omitempty"`
}

type TwitterFetchResponse struct {
	Success      bool            `json:"success"`
	Tweets       []ContentRecord `json:"tweets"`
	FetchedCount int             `json:"fetched_count"`
	Error        string          `json:"error,omitempty"`
}

type TwitterTestResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}
