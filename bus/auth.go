package bus

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// NodeAuth identifies a node joining a rendering session. The jwt carries
// the node id and session name as claims.
type NodeAuth struct {
	ByJwt string
}

func (self *NodeAuth) NodeId() (Id, error) {
	nodeJwt, err := ParseNodeJwtUnverified(self.ByJwt)
	if err != nil {
		return Id{}, err
	}
	return nodeJwt.NodeId, nil
}

type NodeJwt struct {
	NodeId      Id
	SessionName string
}

var ErrBadJwt = errors.New("malformed node jwt")

// SignNodeJwt mints a session token for a node. The listener side
// verifies with the same shared secret.
func SignNodeJwt(nodeJwt *NodeJwt, secret []byte) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"node_id":      nodeJwt.NodeId.String(),
		"session_name": nodeJwt.SessionName,
		"iat":          time.Now().Unix(),
	})
	return token.SignedString(secret)
}

func ParseNodeJwt(jwt string, secret []byte) (*NodeJwt, error) {
	token, err := gojwt.Parse(jwt, func(token *gojwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, ErrBadJwt
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return nodeJwtFromClaims(token.Claims.(gojwt.MapClaims))
}

func ParseNodeJwtUnverified(jwt string) (*NodeJwt, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(jwt, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	return nodeJwtFromClaims(token.Claims.(gojwt.MapClaims))
}

func nodeJwtFromClaims(claims gojwt.MapClaims) (*NodeJwt, error) {
	nodeJwt := &NodeJwt{}

	nodeIdStr, ok := claims["node_id"].(string)
	if !ok {
		return nil, ErrBadJwt
	}
	nodeId, err := ParseId(nodeIdStr)
	if err != nil {
		return nil, err
	}
	nodeJwt.NodeId = nodeId

	if sessionName, ok := claims["session_name"].(string); ok {
		nodeJwt.SessionName = sessionName
	}

	return nodeJwt, nil
}
