package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const facebookGraphURL = "https://graph.facebook.com"

// Facebook exchanges the short-lived client token for a long-lived one and
// reads the profile from the Graph API.
type Facebook struct {
	AppID     string
	AppSecret string
	GraphURL  string
	HTTP      *http.Client
}

func NewFacebook(appID, appSecret string) *Facebook {
	return &Facebook{
		AppID:     appID,
		AppSecret: appSecret,
		GraphURL:  facebookGraphURL,
		HTTP:      http.DefaultClient,
	}
}

func (f *Facebook) Exchange(ctx context.Context, shortToken string) (*Identity, error) {
	token, err := f.exchangeToken(ctx, shortToken)
	if err != nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Failed to exchange the client token."}
	}

	var profile struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	q := url.Values{"access_token": {token}, "fields": {"name,email"}}
	if err := f.getJSON(ctx, f.GraphURL+"/me?"+q.Encode(), &profile); err != nil {
		return nil, &AuthError{Status: http.StatusInternalServerError, Message: "Failed to fetch user info."}
	}

	var picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	q = url.Values{"access_token": {token}, "redirect": {"false"}, "size": {"large"}}
	if err := f.getJSON(ctx, f.GraphURL+"/"+url.PathEscape(profile.ID)+"/picture?"+q.Encode(), &picture); err != nil {
		return nil, &AuthError{Status: http.StatusInternalServerError, Message: "Failed to fetch the profile picture."}
	}

	return &Identity{
		ExtUserID: profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Picture:   picture.Data.URL,
		Token:     token,
	}, nil
}

// Revoke deletes the app permissions of the connected user, which
// invalidates the stored access token.
func (f *Facebook) Revoke(ctx context.Context, extUserID, token string) error {
	u := f.GraphURL + "/" + url.PathEscape(extUserID) + "/permissions?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	res, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("oauth: permissions delete returned %s", res.Status)
	}
	return nil
}

// exchangeToken swaps the short-lived token for a long-lived access token.
// The Graph API answers with JSON these days, not the legacy query-string
// body.
func (f *Facebook) exchangeToken(ctx context.Context, shortToken string) (string, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {f.AppID},
		"client_secret":     {f.AppSecret},
		"fb_exchange_token": {shortToken},
	}

	var answer struct {
		AccessToken string `json:"access_token"`
		Error       *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := f.getJSON(ctx, f.GraphURL+"/oauth/access_token?"+q.Encode(), &answer); err != nil {
		return "", err
	}
	if answer.Error != nil {
		return "", fmt.Errorf("oauth: %s", answer.Error.Message)
	}
	if answer.AccessToken == "" {
		return "", fmt.Errorf("oauth: token exchange returned no access token")
	}
	return answer.AccessToken, nil
}

func (f *Facebook) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	return json.NewDecoder(res.Body).Decode(out)
}
