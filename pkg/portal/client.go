package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aquamon-pt/aquamon/pkg/metrics"
	"github.com/sirupsen/logrus"
)

var httpClient = &http.Client{
	Timeout: time.Second * 30,
}

const (
	headerAPIKey    = "api-key"
	headerAuthToken = "X-Auth-Token"

	brandCode   = "AF"
	productCode = "AG"

	pathLogin         = "/login"
	pathSubscriptions = "/Subscription/listSubscriptions"
	pathMeters        = "/leituras/getContadores"
	pathConsumption   = "/History/consumo/carga"
)

// Client talks to the water utility portal. The auth token lives on the
// client and is refreshed transparently when the portal expires it.
type Client struct {
	baseURL  string
	apiKey   string
	username string
	password string

	tokenFile string

	mutex sync.RWMutex
	token string
}

func New(baseURL, apiKey, username, password, tokenFile string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		username:  username,
		password:  password,
		tokenFile: tokenFile,
	}
}

func (c *Client) Token() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mutex.Lock()
	c.token = strings.TrimSpace(token)
	c.mutex.Unlock()
}

func (c *Client) PersistToken() error {
	if c.tokenFile == "" {
		return nil
	}
	return os.WriteFile(c.tokenFile, []byte(c.Token()), 0644)
}

func (c *Client) LoadToken() error {
	if c.tokenFile == "" {
		return nil
	}
	if _, err := os.Stat(c.tokenFile); err == nil {
		b, err := os.ReadFile(c.tokenFile)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil // dont load empty token
		}
		c.SetToken(string(b))
	}
	return nil
}

// Login authenticates and stores the session token. The portal delivers the
// token in the X-Auth-Token response header, a response without one is a
// failed login no matter the status code.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathLogin, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: pathLogin, Err: err}
	}
	defer resp.Body.Close()
	metrics.PortalRequest(pathLogin, resp.StatusCode)

	token := resp.Header.Get(headerAuthToken)
	if token == "" {
		return &AuthError{Message: "no token in login response"}
	}
	if !is2xx(resp.StatusCode) {
		return &AuthError{Message: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}

	c.SetToken(token)
	err = c.PersistToken()
	if err != nil {
		logrus.Warnf("error persisting token: %v", err)
	}
	logrus.Debug("authenticated against portal")
	return nil
}

// Subscriptions lists the contracts on the account. Best effort, any
// failure yields an empty list so callers can fall back to configured ids.
func (c *Client) Subscriptions(ctx context.Context) []Subscription {
	resp, err := c.get(ctx, pathSubscriptions, nil, true)
	if err != nil {
		logrus.Warnf("error fetching subscriptions: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		logrus.Warnf("fetching subscriptions returned status %d", resp.StatusCode)
		return nil
	}

	var subs []Subscription
	err = json.NewDecoder(resp.Body).Decode(&subs)
	if err != nil {
		logrus.Warnf("error decoding subscriptions: %v", err)
		return nil
	}
	logrus.Debugf("fetched %d subscriptions", len(subs))
	return subs
}

// Meters lists the meters attached to a subscription.
func (c *Client) Meters(ctx context.Context, subscriptionID string) ([]MeterInfo, error) {
	params := url.Values{}
	params.Set("subscriptionId", subscriptionID)

	resp, err := c.get(ctx, pathMeters, params, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, &InvalidResponseError{Endpoint: pathMeters, StatusCode: resp.StatusCode, Message: "failed to fetch meters"}
	}

	var meters []MeterInfo
	err = json.NewDecoder(resp.Body).Decode(&meters)
	if err != nil {
		logrus.Warnf("meters response is not a list: %v", err)
		return nil, nil
	}
	logrus.Debugf("fetched %d meters", len(meters))
	return meters, nil
}

// Consumption fetches raw readings for the meter covering the last days
// days up to now.
func (c *Client) Consumption(ctx context.Context, meterNumber, subscriptionID string, days int) ([]ReadingRecord, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("codigoMarca", brandCode)
	params.Set("codigoProduto", productCode)
	params.Set("numeroContador", meterNumber)
	params.Set("subscriptionId", subscriptionID)
	params.Set("initialDate", start.Format("2006-01-02"))
	params.Set("finalDate", end.Format("2006-01-02"))

	resp, err := c.get(ctx, pathConsumption, params, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		return nil, &InvalidResponseError{Endpoint: pathConsumption, StatusCode: resp.StatusCode, Message: "failed to fetch consumption"}
	}

	var records []ReadingRecord
	err = json.NewDecoder(resp.Body).Decode(&records)
	if err != nil {
		return nil, &InvalidResponseError{Endpoint: pathConsumption, Message: "consumption response is not a list of readings"}
	}
	logrus.Debugf("fetched %d readings for meter %s", len(records), meterNumber)
	return records, nil
}

// get performs an authenticated GET, logging in first when no token is held
// yet. A 401 triggers exactly one relogin and retry.
func (c *Client) get(ctx context.Context, path string, params url.Values, retryOnAuth bool) (*http.Response, error) {
	if c.Token() == "" {
		err := c.Login(ctx)
		if err != nil {
			return nil, err
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerAuthToken, c.Token())
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: path, Err: err}
	}
	metrics.PortalRequest(path, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized && retryOnAuth {
		resp.Body.Close()
		logrus.Warnf("token rejected on %s, logging in again", path)
		err := c.Login(ctx)
		if err != nil {
			return nil, err
		}
		return c.get(ctx, path, params, false)
	}

	return resp, nil
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
