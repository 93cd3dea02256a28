package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/config"
)

// Profile is the platform's view of an account, as returned by token
// verification
type Profile struct {
	UserId     uint32 `json:"id"`
	Username   string `json:"username"`
	Membership uint8  `json:"membership"`
}

// AccountClient talks to the platform's account API: token verification for
// the join handshake, asset ownership checks and badge grants
type AccountClient struct {
	baseUrl string
	client  *http.Client
}

// NewAccountClient creates an AccountClient against the configured platform
// endpoint
func NewAccountClient(cfg *config.PlatformConfig) *AccountClient {
	return &AccountClient{
		baseUrl: cfg.BaseUrl,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (ac *AccountClient) getJSON(path string, out interface{}) error {
	resp, err := ac.client.Get(ac.baseUrl + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("platform returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// VerifyToken validates a join token for the claimed user id and returns
// the verified profile. The token is single-use and minted by the platform
// when the user launches the client.
func (ac *AccountClient) VerifyToken(token string, userId uint32) (*Profile, error) {
	var reply struct {
		Valid bool    `json:"valid"`
		User  Profile `json:"user"`
	}
	path := fmt.Sprintf("/v1/auth/verifyToken?token=%s", url.QueryEscape(token))
	if err := ac.getJSON(path, &reply); err != nil {
		return nil, errors.Wrap(err, "verify token")
	}
	if !reply.Valid || reply.User.UserId != userId {
		return nil, errors.Errorf("token rejected for user %d", userId)
	}
	return &reply.User, nil
}

// GetProfile fetches the public profile of a user
func (ac *AccountClient) GetProfile(userId uint32) (*Profile, error) {
	var p Profile
	if err := ac.getJSON(fmt.Sprintf("/v1/user/%d", userId), &p); err != nil {
		return nil, errors.Wrapf(err, "get profile %d", userId)
	}
	return &p, nil
}

// OwnsAsset reports whether the user owns the given asset
func (ac *AccountClient) OwnsAsset(userId uint32, assetId uint32) (bool, error) {
	var reply struct {
		Owns bool `json:"owns"`
	}
	if err := ac.getJSON(fmt.Sprintf("/v1/user/%d/owns/%d", userId, assetId), &reply); err != nil {
		return false, errors.Wrapf(err, "ownership check %d/%d", userId, assetId)
	}
	return reply.Owns, nil
}

// GrantBadge awards a badge to a user; granting an already-owned badge is
// not an error on the platform side
func (ac *AccountClient) GrantBadge(userId uint32, badgeId uint32) error {
	resp, err := ac.client.Post(fmt.Sprintf("%s/v1/user/%d/badge/%d", ac.baseUrl, userId, badgeId), "application/json", nil)
	if err != nil {
		return errors.Wrapf(err, "grant badge %d to %d", badgeId, userId)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("grant badge %d to %d: platform returned %s", badgeId, userId, resp.Status)
	}
	return nil
}
