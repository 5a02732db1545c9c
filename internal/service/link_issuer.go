package service

import (
	"context"
	"time"

	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// SecureLinkIssuer turns asset references into time-limited download links
type SecureLinkIssuer struct {
	minter  SignedURLMinter
	cache   LinkCache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewSecureLinkIssuer creates a link issuer. cache may be nil.
func NewSecureLinkIssuer(minter SignedURLMinter, cache LinkCache, ttl, timeout time.Duration) *SecureLinkIssuer {
	return &SecureLinkIssuer{
		minter:  minter,
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
		logger:  util.ComponentLogger("link-issuer"),
	}
}

// Issue returns a signed download link for managed-storage references and the
// reference itself for anything else. A signing failure degrades to the raw
// reference.
func (i *SecureLinkIssuer) Issue(ctx context.Context, assetRef string) string {
	ref, ok := i.minter.ParseObjectURL(assetRef)
	if !ok {
		util.SignedLinksTotal.WithLabelValues("passthrough").Inc()
		return assetRef
	}

	ctx, span := util.StartSpan(ctx, "SecureLinkIssuer.Issue")
	defer span.End()

	key := ref.Key()
	if i.cache != nil {
		link, hit, err := i.cache.GetSignedLink(ctx, key)
		if err != nil {
			i.logger.Debug("Signed link cache read failed", zap.String("object", key), zap.Error(err))
		} else if hit {
			util.SignedLinksTotal.WithLabelValues("cached").Inc()
			return link
		}
	}

	start := time.Now()
	link, err := fetchWithTimeout(ctx, i.timeout, func(ctx context.Context) (string, error) {
		return i.minter.CreateSignedURL(ctx, ref, i.ttl, true)
	})
	util.SignedLinkLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.RecordError(span, err)
		util.SignedLinksTotal.WithLabelValues("fallback").Inc()
		i.logger.Warn("Signing failed, returning raw reference",
			zap.String("object", key),
			zap.Error(err))
		return assetRef
	}

	util.SignedLinksTotal.WithLabelValues("signed").Inc()

	if i.cache != nil {
		if err := i.cache.SetSignedLink(ctx, key, link, i.ttl*9/10); err != nil {
			i.logger.Debug("Signed link cache write failed", zap.String("object", key), zap.Error(err))
		}
	}

	return link
}
